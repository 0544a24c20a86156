package models

import (
	"time"
)

// AuditPayload is the body of an audit outbox effect
type AuditPayload struct {
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performed_by,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NotificationPayload is the body of a notification outbox effect
type NotificationPayload struct {
	UserID            string               `json:"user_id"`
	Type              string               `json:"type"`
	Title             string               `json:"title"`
	Message           string               `json:"message"`
	Priority          NotificationPriority `json:"priority"`
	Channels          []string             `json:"channels"`
	Email             string               `json:"email,omitempty"`
	RelatedEntityType string               `json:"related_entity_type,omitempty"`
	RelatedEntityID   string               `json:"related_entity_id,omitempty"`
}

// HasChannel reports whether the notification should go out on channel
func (p NotificationPayload) HasChannel(channel string) bool {
	for _, c := range p.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// ReceiptPayload is the archived copy of a payment receipt
type ReceiptPayload struct {
	ReceiptNumber  string         `json:"receipt_number"`
	PaymentID      string         `json:"payment_id"`
	OrderID        string         `json:"order_id"`
	TransactionID  string         `json:"transaction_id"`
	PaymentFor     PaymentPurpose `json:"payment_for"`
	BillID         string         `json:"bill_id,omitempty"`
	Amount         string         `json:"amount"`
	Currency       string         `json:"currency"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	PaymentGateway string         `json:"payment_gateway"`
	CustomerName   string         `json:"customer_name,omitempty"`
	CustomerEmail  string         `json:"customer_email,omitempty"`
	PaidAt         time.Time      `json:"paid_at"`
}

// Payment event types published to the message bus
const (
	PaymentEventSettled = "payment.settled"
	PaymentEventFailed  = "payment.failed"
)

// PaymentEventPayload is the message published for downstream consumers
type PaymentEventPayload struct {
	Type             string         `json:"type"`
	OrderID          string         `json:"order_id"`
	GatewayOrderID   string         `json:"gateway_order_id"`
	PaymentID        string         `json:"payment_id,omitempty"`
	TransactionID    string         `json:"transaction_id"`
	PaymentFor       PaymentPurpose `json:"payment_for"`
	BillID           string         `json:"bill_id,omitempty"`
	ServiceRequestID string         `json:"service_request_id,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	Amount           string         `json:"amount"`
	Currency         string         `json:"currency"`
	Reason           string         `json:"reason,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}
