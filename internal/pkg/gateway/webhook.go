package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Webhook event types the gateway sends
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// SignatureHeader carries the hex HMAC of the raw webhook body
const SignatureHeader = "X-Razorpay-Signature"

// WebhookPayload is the envelope of every webhook delivery
type WebhookPayload struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment,omitempty"`
		Order *struct {
			Entity Order `json:"entity"`
		} `json:"order,omitempty"`
		Refund *struct {
			Entity Refund `json:"entity"`
		} `json:"refund,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// ParseWebhookPayload decodes a delivery. It only needs the event name to succeed.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("gateway: decode webhook: %w", err)
	}
	if strings.TrimSpace(p.Event) == "" {
		return nil, errors.New("gateway: webhook has no event")
	}
	return &p, nil
}

// PaymentEntity returns the embedded payment, if any
func (p *WebhookPayload) PaymentEntity() *Payment {
	if p.Payload.Payment == nil {
		return nil
	}
	return &p.Payload.Payment.Entity
}

// RefundEntity returns the embedded refund, if any
func (p *WebhookPayload) RefundEntity() *Refund {
	if p.Payload.Refund == nil {
		return nil
	}
	return &p.Payload.Refund.Entity
}

// EntityID picks the id that identifies what the event is about: the
// payment, else the refund, else the order.
func (p *WebhookPayload) EntityID() string {
	if pay := p.PaymentEntity(); pay != nil && pay.ID != "" {
		return pay.ID
	}
	if ref := p.RefundEntity(); ref != nil && ref.ID != "" {
		return ref.ID
	}
	if p.Payload.Order != nil {
		return p.Payload.Order.Entity.ID
	}
	return ""
}
