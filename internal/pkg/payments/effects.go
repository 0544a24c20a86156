package payments

import (
	"encoding/json"
	"fmt"

	"github.com/civicpay/civicpay/app/models"
)

// Audit actions
const (
	AuditActionCreate          = "CREATE"
	AuditActionPaymentVerified = "PAYMENT_VERIFIED"
	AuditActionPaymentCaptured = "PAYMENT_CAPTURED"
	AuditActionPaymentFailed   = "PAYMENT_FAILED"
	AuditActionAmountMismatch  = "AMOUNT_MISMATCH"
)

// Notification types
const (
	NotificationPaymentSuccess = "payment_success"
	NotificationPaymentFailed  = "payment_failed"
)

const (
	entityPaymentOrder = "PaymentOrder"
	entityPayment      = "Payment"
)

func newEffect(kind models.EffectKind, dedupKey, aggregateType, aggregateID string, payload interface{}) (*models.OutboxEffect, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s effect: %w", kind, err)
	}
	return &models.OutboxEffect{
		Kind:          kind,
		DedupKey:      dedupKey,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
	}, nil
}

func auditEffect(dedupKey string, p models.AuditPayload) (*models.OutboxEffect, error) {
	return newEffect(models.EffectKindAudit, "audit:"+dedupKey, p.EntityType, p.EntityID, p)
}

func notificationEffect(dedupKey string, p models.NotificationPayload) (*models.OutboxEffect, error) {
	return newEffect(models.EffectKindNotification, "notify:"+dedupKey, p.RelatedEntityType, p.RelatedEntityID, p)
}

func receiptEffect(p models.ReceiptPayload) (*models.OutboxEffect, error) {
	return newEffect(models.EffectKindReceiptArchive, "receipt:"+p.ReceiptNumber, entityPayment, p.PaymentID, p)
}

func paymentEventEffect(p models.PaymentEventPayload) (*models.OutboxEffect, error) {
	return newEffect(models.EffectKindPaymentEvent, "event:"+p.Type+":"+p.TransactionID, entityPaymentOrder, p.OrderID, p)
}

// effectSet collects effects and keeps the first marshal error
type effectSet struct {
	effects []*models.OutboxEffect
	err     error
}

func (s *effectSet) add(e *models.OutboxEffect, err error) {
	if s.err != nil {
		return
	}
	if err != nil {
		s.err = err
		return
	}
	s.effects = append(s.effects, e)
}
