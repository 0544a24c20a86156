package payments

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicpay/civicpay/internal/pkg/refcode"
)

// NewReceiptNumber builds RCP-<base36 millis>-<4 random chars>. Collisions
// surface as a duplicate key and the settle transaction retries.
func NewReceiptNumber(now time.Time) string {
	suffix, err := refcode.Random(4, refcode.Base36)
	if err != nil {
		suffix = strings.ToUpper(uuid.NewString()[:4])
	}
	return "RCP-" + refcode.Encode(uint64(now.UnixMilli()), refcode.Base36) + "-" + suffix
}
