package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

const (
	pathVerify   = "verify"
	pathWebhook  = "webhook"
	actorGateway = "gateway"
)

// VerifyInput is the checkout callback the client forwards after payment
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	ActorID          string
}

// VerifyResult identifies the settled payment
type VerifyResult struct {
	OrderID        string
	PaymentID      string
	ReceiptNumber  string
	AlreadyPaid    bool
	AmountMismatch bool
}

// Engine reconciles order state from the two independent confirmation
// paths: the client verify call and the gateway webhook. Both paths settle
// through the same locked transaction so they converge on one outcome.
type Engine struct {
	repos      *repository.Repositories
	gateway    GatewayClient
	dedup      *DedupStore
	cfg        *Config
	now        func() time.Time
	newReceipt func(time.Time) string
}

// settlement is one confirmed capture to apply to an order
type settlement struct {
	gatewayOrderID string
	payment        *gateway.Payment
	signature      string
	path           string
	actor          string
}

type settleResult struct {
	order          *models.PaymentOrder
	payment        *models.Payment
	alreadyPaid    bool
	amountMismatch bool
}

// VerifyPayment confirms a checkout from the client side
func (e *Engine) VerifyPayment(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if !VerifyPaymentSignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature, e.cfg.KeySecret) {
		metrics.Reconciled(pathVerify, "invalid_signature")
		log.Warnf("[Payments] Invalid checkout signature for gateway order %s", in.GatewayOrderID)
		return nil, ErrInvalidSignature
	}

	order, err := e.repos.PaymentOrder.GetByGatewayOrderID(ctx, in.GatewayOrderID)
	if err != nil {
		return nil, notFoundErr(err, "payment order %s", in.GatewayOrderID)
	}
	if order.IsPaid() {
		metrics.Reconciled(pathVerify, "already_paid")
		payment, err := e.paymentForPaidOrder(ctx, e.repos, order, in.GatewayPaymentID)
		if err != nil {
			return nil, err
		}
		return verifyResult(&settleResult{order: order, payment: payment, alreadyPaid: true}), nil
	}

	gwPayment, err := e.gateway.FetchPayment(ctx, in.GatewayPaymentID)
	if err != nil {
		log.Errorf("[Payments] Fetching payment %s failed: %v", in.GatewayPaymentID, err)
		return nil, &GatewayError{Op: "fetch_payment", Err: err}
	}
	if gwPayment.ID == "" {
		gwPayment.ID = in.GatewayPaymentID
	}
	if gwPayment.ID != in.GatewayPaymentID || (gwPayment.OrderID != "" && gwPayment.OrderID != order.GatewayOrderID) {
		return nil, validationErr("payment %s does not belong to order %s", in.GatewayPaymentID, in.GatewayOrderID)
	}

	res, err := e.settle(ctx, settlement{
		gatewayOrderID: order.GatewayOrderID,
		payment:        gwPayment,
		signature:      in.Signature,
		path:           pathVerify,
		actor:          actorOrSystem(in.ActorID),
	})
	if err != nil {
		metrics.Reconciled(pathVerify, "error")
		return nil, notFoundErr(err, "payment order %s", in.GatewayOrderID)
	}
	return verifyResult(res), nil
}

func verifyResult(res *settleResult) *VerifyResult {
	out := &VerifyResult{
		OrderID:        res.order.OrderID,
		AlreadyPaid:    res.alreadyPaid,
		AmountMismatch: res.amountMismatch,
	}
	if res.payment != nil {
		out.PaymentID = res.payment.PaymentID
		out.ReceiptNumber = res.payment.ReceiptNumber
		out.AmountMismatch = res.payment.AmountMismatch
	}
	return out
}

// settle applies a capture under the order row lock. Retries re-read the
// order, so a concurrent settle that won shows up as alreadyPaid.
func (e *Engine) settle(ctx context.Context, s settlement) (*settleResult, error) {
	var res *settleResult
	err := withRetry(ctx, "settle "+s.gatewayOrderID, func() error {
		res = &settleResult{}
		return e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			order, err := tx.PaymentOrder.LockByGatewayOrderID(ctx, s.gatewayOrderID)
			if err != nil {
				return err
			}
			res.order = order
			if order.IsPaid() {
				res.alreadyPaid = true
				res.payment, err = e.paymentForPaidOrder(ctx, tx, order, s.payment.ID)
				return err
			}
			return e.applyCapture(ctx, tx, order, s, res)
		})
	})
	if err != nil {
		return nil, err
	}
	result := "settled"
	if res.alreadyPaid {
		result = "already_paid"
	}
	metrics.Reconciled(s.path, result)
	return res, nil
}

// paymentForPaidOrder finds the Payment row of an order that is already
// paid, preferring the given transaction.
func (e *Engine) paymentForPaidOrder(ctx context.Context, repos *repository.Repositories, order *models.PaymentOrder, transactionID string) (*models.Payment, error) {
	payment, err := repos.Payment.GetByTransactionID(ctx, transactionID)
	switch {
	case err == nil && payment.PaymentOrderID == order.OrderID:
		return payment, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	log.Warnf("[Payments] Order %s is already paid by %s; capture %s was not recorded",
		order.OrderID, deref(order.GatewayPaymentID), transactionID)

	latest, err := repos.Payment.GetLatestByOrderID(ctx, order.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return latest, err
}

func (e *Engine) applyCapture(ctx context.Context, tx *repository.Repositories, order *models.PaymentOrder, s settlement, res *settleResult) error {
	now := e.now()
	p := s.payment
	gatewayAmount := FromMinorUnits(p.Amount)
	mismatch := !gatewayAmount.Equal(order.Amount)
	res.amountMismatch = mismatch

	metadata := cloneMetadata(order.Metadata)
	metadata["settled_via"] = s.path
	if order.Status == models.OrderStatusFailed {
		metadata["recovered_from_failed"] = true
		log.Infof("[Payments] Order %s recovered from failed by capture %s", order.OrderID, p.ID)
	}
	if mismatch {
		metadata["amount_mismatch"] = map[string]interface{}{
			"expected":    order.Amount.StringFixed(2),
			"received":    gatewayAmount.StringFixed(2),
			"detected_at": now.UTC().Format(time.RFC3339),
		}
		log.Warnf("[Payments] Amount mismatch on order %s: expected %s, gateway captured %s",
			order.OrderID, order.Amount.StringFixed(2), gatewayAmount.StringFixed(2))
	}

	fields := map[string]interface{}{
		"status":             models.OrderStatusPaid,
		"paid_at":            now,
		"gateway_payment_id": p.ID,
		"metadata":           datatypes.JSONMap(metadata),
	}
	if s.signature != "" {
		fields["gateway_signature"] = s.signature
	}
	if order.CustomerEmail == "" && p.Email != "" {
		fields["customer_email"] = p.Email
		order.CustomerEmail = p.Email
	}
	if err := tx.PaymentOrder.Update(ctx, order.OrderID, fields); err != nil {
		return err
	}

	userID := deref(order.UserID)
	if userID == "" {
		userID = p.Notes["user_id"]
	}

	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal gateway payment: %w", err)
	}
	details, err := json.Marshal(ExtractMethodDetails(p))
	if err != nil {
		return fmt.Errorf("marshal method details: %w", err)
	}

	payment, err := tx.Payment.GetByTransactionID(ctx, p.ID)
	switch {
	case err == nil:
		if err := tx.Payment.UpdateSnapshot(ctx, payment.PaymentID, models.PaymentStatusSuccess, snapshot); err != nil {
			return err
		}
		payment.PaymentStatus = models.PaymentStatusSuccess
	case errors.Is(err, gorm.ErrRecordNotFound):
		payment = &models.Payment{
			PaymentOrderID:  order.OrderID,
			BillID:          order.BillID,
			UserID:          optional(userID),
			TransactionID:   p.ID,
			PaymentMethod:   methodKind(p.Method),
			PaymentGateway:  gateway.Name,
			Amount:          order.Amount,
			GatewayAmount:   gatewayAmount,
			AmountMismatch:  mismatch,
			PaymentStatus:   models.PaymentStatusSuccess,
			MethodDetails:   details,
			GatewayResponse: snapshot,
			ReceiptNumber:   e.newReceipt(now),
			PaymentDate:     now,
		}
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return err
		}
	default:
		return err
	}
	res.payment = payment

	if order.BillID != nil {
		if err := tx.Bill.MarkPaid(ctx, *order.BillID, now); err != nil {
			return err
		}
	}
	if order.ServiceRequestID != nil {
		if err := tx.ServiceRequest.MarkPaymentReceived(ctx, *order.ServiceRequestID); err != nil {
			return err
		}
	}

	effects := e.captureEffects(order, payment, s, userID, mismatch, now)
	if effects.err != nil {
		return effects.err
	}
	if err := tx.Outbox.Append(ctx, effects.effects...); err != nil {
		return err
	}

	log.Infof("[Payments] Order %s paid via %s (transaction %s, receipt %s)", order.OrderID, s.path, p.ID, payment.ReceiptNumber)
	return nil
}

func (e *Engine) captureEffects(order *models.PaymentOrder, payment *models.Payment, s settlement, userID string, mismatch bool, now time.Time) *effectSet {
	set := &effectSet{}
	txnID := payment.TransactionID

	action := AuditActionPaymentCaptured
	if s.path == pathVerify {
		action = AuditActionPaymentVerified
	}
	set.add(auditEffect("payment_settled:"+txnID, models.AuditPayload{
		EntityType:  entityPayment,
		EntityID:    payment.PaymentID,
		Action:      action,
		PerformedBy: s.actor,
		Details: map[string]interface{}{
			"order_id":       order.OrderID,
			"transaction_id": txnID,
			"receipt_number": payment.ReceiptNumber,
			"amount":         payment.Amount.StringFixed(2),
		},
	}))
	if mismatch {
		set.add(auditEffect("amount_mismatch:"+txnID, models.AuditPayload{
			EntityType:  entityPayment,
			EntityID:    payment.PaymentID,
			Action:      AuditActionAmountMismatch,
			PerformedBy: s.actor,
			Details: map[string]interface{}{
				"expected": payment.Amount.StringFixed(2),
				"received": payment.GatewayAmount.StringFixed(2),
			},
		}))
	}
	if userID != "" {
		set.add(notificationEffect("payment_success:"+txnID, models.NotificationPayload{
			UserID:            userID,
			Type:              NotificationPaymentSuccess,
			Title:             "Payment Successful",
			Message:           fmt.Sprintf("Your payment of ₹%s has been received. Receipt: %s", payment.Amount.StringFixed(2), payment.ReceiptNumber),
			Priority:          models.NotificationPriorityNormal,
			Channels:          []string{models.NotificationChannelInApp, models.NotificationChannelEmail},
			Email:             order.CustomerEmail,
			RelatedEntityType: entityPayment,
			RelatedEntityID:   payment.PaymentID,
		}))
	}
	set.add(receiptEffect(models.ReceiptPayload{
		ReceiptNumber:  payment.ReceiptNumber,
		PaymentID:      payment.PaymentID,
		OrderID:        order.OrderID,
		TransactionID:  txnID,
		PaymentFor:     order.PaymentFor,
		BillID:         deref(order.BillID),
		Amount:         payment.Amount.StringFixed(2),
		Currency:       order.Currency,
		PaymentMethod:  payment.PaymentMethod,
		PaymentGateway: payment.PaymentGateway,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		PaidAt:         now,
	}))
	set.add(paymentEventEffect(models.PaymentEventPayload{
		Type:             models.PaymentEventSettled,
		OrderID:          order.OrderID,
		GatewayOrderID:   order.GatewayOrderID,
		PaymentID:        payment.PaymentID,
		TransactionID:    txnID,
		PaymentFor:       order.PaymentFor,
		BillID:           deref(order.BillID),
		ServiceRequestID: deref(order.ServiceRequestID),
		UserID:           userID,
		Amount:           payment.Amount.StringFixed(2),
		Currency:         order.Currency,
		OccurredAt:       now,
	}))
	return set
}

// failureOutcome values for recordFailure
const (
	failureApplied      = "failed"
	failureUnknownOrder = "unknown_order"
	failureIgnored      = "ignored"
)

// recordFailure marks an order as failed and records the latest attempt's
// reason. Paid orders are left untouched so a late failure can never demote a
// payment; a failed order takes each new failed attempt.
func (e *Engine) recordFailure(ctx context.Context, p *gateway.Payment) (string, error) {
	var outcome string
	err := withRetry(ctx, "fail "+p.OrderID, func() error {
		return e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			order, err := tx.PaymentOrder.LockByGatewayOrderID(ctx, p.OrderID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = failureUnknownOrder
				return nil
			}
			if err != nil {
				return err
			}
			if order.IsPaid() {
				outcome = failureIgnored
				log.Infof("[Payments] Ignoring failure %s for order %s in status %s", p.ID, order.OrderID, order.Status)
				return nil
			}

			now := e.now()
			metadata := cloneMetadata(order.Metadata)
			metadata["failure_reason"] = p.ErrorDescription
			metadata["failure_code"] = p.ErrorCode
			metadata["failed_payment_id"] = p.ID
			if p.ErrorReason != "" {
				metadata["failure_reason_code"] = p.ErrorReason
			}
			if err := tx.PaymentOrder.Update(ctx, order.OrderID, map[string]interface{}{
				"status":             models.OrderStatusFailed,
				"gateway_payment_id": p.ID,
				"metadata":           datatypes.JSONMap(metadata),
			}); err != nil {
				return err
			}

			set := e.failureEffects(order, p, now)
			if set.err != nil {
				return set.err
			}
			if err := tx.Outbox.Append(ctx, set.effects...); err != nil {
				return err
			}
			outcome = failureApplied
			log.Infof("[Payments] Order %s failed: %s (%s)", order.OrderID, p.ErrorDescription, p.ErrorCode)
			return nil
		})
	})
	if err != nil {
		metrics.Reconciled(pathWebhook, "error")
		return "", err
	}
	metrics.Reconciled(pathWebhook, outcome)
	return outcome, nil
}

func (e *Engine) failureEffects(order *models.PaymentOrder, p *gateway.Payment, now time.Time) *effectSet {
	set := &effectSet{}
	userID := deref(order.UserID)
	if userID == "" {
		userID = p.Notes["user_id"]
	}
	reason := p.ErrorDescription
	if reason == "" {
		reason = "Payment could not be completed"
	}

	set.add(auditEffect("payment_failed:"+p.ID, models.AuditPayload{
		EntityType:  entityPaymentOrder,
		EntityID:    order.OrderID,
		Action:      AuditActionPaymentFailed,
		PerformedBy: actorGateway,
		Details: map[string]interface{}{
			"transaction_id": p.ID,
			"error_code":     p.ErrorCode,
			"reason":         reason,
		},
	}))
	if userID != "" {
		set.add(notificationEffect("payment_failed:"+p.ID, models.NotificationPayload{
			UserID:            userID,
			Type:              NotificationPaymentFailed,
			Title:             "Payment Failed",
			Message:           fmt.Sprintf("Your payment of ₹%s could not be completed. Reason: %s", order.Amount.StringFixed(2), reason),
			Priority:          models.NotificationPriorityHigh,
			Channels:          []string{models.NotificationChannelInApp},
			RelatedEntityType: entityPaymentOrder,
			RelatedEntityID:   order.OrderID,
		}))
	}
	set.add(paymentEventEffect(models.PaymentEventPayload{
		Type:             models.PaymentEventFailed,
		OrderID:          order.OrderID,
		GatewayOrderID:   order.GatewayOrderID,
		TransactionID:    p.ID,
		PaymentFor:       order.PaymentFor,
		BillID:           deref(order.BillID),
		ServiceRequestID: deref(order.ServiceRequestID),
		UserID:           userID,
		Amount:           order.Amount.StringFixed(2),
		Currency:         order.Currency,
		Reason:           reason,
		OccurredAt:       now,
	}))
	return set
}
