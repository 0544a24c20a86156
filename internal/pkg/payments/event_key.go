package payments

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/civicpay/civicpay/internal/pkg/gateway"
)

// EventKey identifies a webhook delivery: <event>-<entityId>-<created_at>.
// Redeliveries of the same event share the key.
func EventKey(p *gateway.WebhookPayload) string {
	return p.Event + "-" + p.EntityID() + "-" + strconv.FormatInt(p.CreatedAt, 10)
}

// FallbackEventKey keys a body that could not be parsed
func FallbackEventKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}
