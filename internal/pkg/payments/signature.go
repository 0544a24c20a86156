package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSignature returns the hex HMAC-SHA256 of payload under secret
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the checkout signature, computed over
// "<gatewayOrderID>|<gatewayPaymentID>".
func VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	return verifyHMACSHA256([]byte(gatewayOrderID+"|"+gatewayPaymentID), signature, secret)
}

// VerifyWebhookSignature checks the signature of a webhook delivery against
// the exact bytes received.
func VerifyWebhookSignature(rawBody []byte, signature, secret string) bool {
	return verifyHMACSHA256(rawBody, signature, secret)
}

func verifyHMACSHA256(payload []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
