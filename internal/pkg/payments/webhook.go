package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

// WebhookRequest is one delivery as received over HTTP
type WebhookRequest struct {
	RawBody   []byte
	Signature string
	IPAddress string
	Headers   map[string]string
}

// WebhookStatus is the acknowledgement returned to the gateway
type WebhookStatus string

const (
	WebhookStatusOK            WebhookStatus = "ok"
	WebhookStatusDuplicate     WebhookStatus = "duplicate"
	WebhookStatusIgnored       WebhookStatus = "ignored"
	WebhookStatusUnimplemented WebhookStatus = "unimplemented"
	WebhookStatusError         WebhookStatus = "error"
)

// Reasons attached to an ignored delivery
const (
	ReasonInvalidSignature = "invalid_signature"
	ReasonMalformedPayload = "malformed_payload"
	ReasonUnhandledEvent   = "unhandled_event"
)

// WebhookOutcome is the result of handling one delivery. The transport
// always acknowledges with 200 so the gateway does not retry blindly.
type WebhookOutcome struct {
	Status   WebhookStatus
	Reason   string
	Message  string
	EventKey string
}

// HandleWebhook records the delivery, verifies it and applies it at most
// once. It never returns an error and recovers from panics; failures are
// stored on the event and reported as WebhookStatusError.
func (e *Engine) HandleWebhook(ctx context.Context, req WebhookRequest) (out WebhookOutcome) {
	payload, parseErr := gateway.ParseWebhookPayload(req.RawBody)
	key := FallbackEventKey(req.RawBody)
	eventType := ""
	if parseErr == nil {
		key = EventKey(payload)
		eventType = payload.Event
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] Panic while handling %s: %v", key, r)
			out = e.webhookFailed(ctx, key, fmt.Errorf("panic: %v", r))
		}
		out.EventKey = key
		metrics.WebhookHandled(eventType, string(out.Status))
	}()

	duplicate, err := e.dedup.IsDuplicate(ctx, key)
	if err != nil {
		log.Errorf("[Webhook] Dedup lookup failed for %s: %v", key, err)
		return WebhookOutcome{Status: WebhookStatusError, Message: "internal error"}
	}
	if duplicate {
		log.Debugf("[Webhook] Duplicate delivery %s", key)
		return WebhookOutcome{Status: WebhookStatusDuplicate}
	}

	verified := VerifyWebhookSignature(req.RawBody, req.Signature, e.cfg.WebhookSecret)
	event, err := e.dedup.UpsertEvent(ctx, key, EventAttrs{
		EventType: eventType,
		RawBody:   req.RawBody,
		Verified:  verified,
		IPAddress: req.IPAddress,
		Headers:   req.Headers,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to store delivery %s: %v", key, err)
		return WebhookOutcome{Status: WebhookStatusError, Message: "internal error"}
	}

	if !verified {
		log.Warnf("[Webhook] Invalid signature for %s from %s", key, req.IPAddress)
		e.recordError(ctx, key, "invalid signature")
		return WebhookOutcome{Status: WebhookStatusIgnored, Reason: ReasonInvalidSignature}
	}
	if parseErr != nil {
		log.Warnf("[Webhook] Malformed payload %s: %v", key, parseErr)
		e.recordError(ctx, key, parseErr.Error())
		return WebhookOutcome{Status: WebhookStatusIgnored, Reason: ReasonMalformedPayload}
	}

	out, err = e.dispatch(ctx, payload)
	if errors.Is(err, ErrNotImplemented) {
		e.recordError(ctx, key, err.Error())
		return WebhookOutcome{Status: WebhookStatusUnimplemented}
	}
	if err != nil {
		return e.webhookFailed(ctx, key, err)
	}

	if err := e.dedup.MarkProcessed(ctx, event.EventID); err != nil {
		return e.webhookFailed(ctx, key, err)
	}
	return out
}

func (e *Engine) dispatch(ctx context.Context, payload *gateway.WebhookPayload) (WebhookOutcome, error) {
	ok := WebhookOutcome{Status: WebhookStatusOK}

	switch payload.Event {
	case gateway.EventPaymentCaptured:
		p := payload.PaymentEntity()
		if p == nil || p.ID == "" || p.OrderID == "" {
			return ok, validationErr("payment.captured without payment entity")
		}
		_, err := e.settle(ctx, settlement{
			gatewayOrderID: p.OrderID,
			payment:        p,
			path:           pathWebhook,
			actor:          actorGateway,
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[Webhook] Capture %s for unknown order %s, skipping", p.ID, p.OrderID)
			return ok, nil
		}
		return ok, err

	case gateway.EventPaymentFailed:
		p := payload.PaymentEntity()
		if p == nil || p.ID == "" || p.OrderID == "" {
			return ok, validationErr("payment.failed without payment entity")
		}
		outcome, err := e.recordFailure(ctx, p)
		if outcome == failureUnknownOrder {
			log.Infof("[Webhook] Failure %s for unknown order %s, skipping", p.ID, p.OrderID)
		}
		return ok, err

	case gateway.EventRefundProcessed:
		return ok, fmt.Errorf("%w: refund handling", ErrNotImplemented)

	default:
		log.Infof("[Webhook] Unhandled event type %s", payload.Event)
		return WebhookOutcome{Status: WebhookStatusIgnored, Reason: ReasonUnhandledEvent}, nil
	}
}

func (e *Engine) webhookFailed(ctx context.Context, key string, err error) WebhookOutcome {
	log.Errorf("[Webhook] Processing %s failed: %v", key, err)
	e.recordError(ctx, key, err.Error())
	return WebhookOutcome{Status: WebhookStatusError, Message: err.Error()}
}

func (e *Engine) recordError(ctx context.Context, key, message string) {
	if err := e.dedup.RecordError(ctx, key, message); err != nil {
		log.Errorf("[Webhook] Failed to record error on %s: %v", key, err)
	}
}
