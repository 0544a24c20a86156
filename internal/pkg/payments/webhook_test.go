package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
)

func storedEvent(t *testing.T, env *testEnv, key string) *models.WebhookEvent {
	t.Helper()
	var event models.WebhookEvent
	require.NoError(t, env.db.First(&event, "event_key = ?", key).Error)
	return &event
}

func TestHandleWebhook_DeduplicatesDeliveries(t *testing.T) {
	env := newTestEnv(t)
	bill, created := env.openBillOrder(t, "500")
	p := capturedPayment("pay_W1", created.GatewayOrderID, 50000)
	req := signedWebhook(webhookBody(t, gateway.EventPaymentCaptured, p, testNow.Unix()))
	ctx := context.Background()

	var statuses []WebhookStatus
	for i := 0; i < 3; i++ {
		statuses = append(statuses, env.svc.HandleWebhook(ctx, req).Status)
	}
	assert.Equal(t, []WebhookStatus{WebhookStatusOK, WebhookStatusDuplicate, WebhookStatusDuplicate}, statuses)

	assert.Equal(t, int64(1), env.count(t, &models.Payment{}, "1 = 1"))
	assert.Equal(t, int64(1), env.count(t, &models.Bill{}, "bill_id = ? AND bill_status = ?", bill.BillID, models.BillStatusPaid))
	assert.Len(t, env.effects(t, models.EffectKindNotification), 1)
	assert.Equal(t, int64(1), env.count(t, &models.WebhookEvent{}, "1 = 1"))

	event := storedEvent(t, env, "payment.captured-pay_W1-1773482400")
	assert.True(t, event.Processed)
	assert.True(t, event.Verified)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, "10.0.0.7", event.IPAddress)
	assert.Equal(t, "application/json", event.Headers["Content-Type"])

	order := env.order(t, created.OrderID)
	assert.Equal(t, "webhook", order.Metadata["settled_via"])
	assert.Nil(t, order.GatewaySignature)
	assert.Contains(t, auditActions(t, env.effects(t, models.EffectKindAudit)), AuditActionPaymentCaptured)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.openBillOrder(t, "500")
	p := capturedPayment("pay_S1", created.GatewayOrderID, 50000)
	req := signedWebhook(webhookBody(t, gateway.EventPaymentCaptured, p, testNow.Unix()))

	sig := []byte(req.Signature)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	badReq := req
	badReq.Signature = string(sig)

	out := env.svc.HandleWebhook(context.Background(), badReq)
	assert.Equal(t, WebhookStatusIgnored, out.Status)
	assert.Equal(t, ReasonInvalidSignature, out.Reason)

	assert.Equal(t, models.OrderStatusCreated, env.order(t, created.OrderID).Status)
	event := storedEvent(t, env, out.EventKey)
	assert.False(t, event.Verified)
	assert.False(t, event.Processed)
	assert.Equal(t, "invalid signature", event.ErrorMessage)

	// A later, correctly signed delivery of the same event is applied.
	out = env.svc.HandleWebhook(context.Background(), req)
	assert.Equal(t, WebhookStatusOK, out.Status)
	assert.Equal(t, models.OrderStatusPaid, env.order(t, created.OrderID).Status)
}

func TestHandleWebhook_RefundIsUnimplemented(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"entity":"event","event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_9","amount":100}}},"created_at":1773482400}`)

	out := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusUnimplemented, out.Status)
	assert.Equal(t, "refund.processed-rfnd_1-1773482400", out.EventKey)

	event := storedEvent(t, env, out.EventKey)
	assert.False(t, event.Processed)
	assert.Contains(t, event.ErrorMessage, "not implemented")

	again := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusUnimplemented, again.Status)
}

func TestHandleWebhook_UnhandledEvent(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"entity":"event","event":"order.paid","payload":{"order":{"entity":{"id":"order_Z","notes":[]}}},"created_at":1773482400}`)

	out := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusIgnored, out.Status)
	assert.Equal(t, ReasonUnhandledEvent, out.Reason)
	assert.True(t, storedEvent(t, env, out.EventKey).Processed)

	again := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusDuplicate, again.Status)
}

func TestHandleWebhook_MalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`not json at all`)

	out := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusIgnored, out.Status)
	assert.Equal(t, ReasonMalformedPayload, out.Reason)
	assert.Equal(t, FallbackEventKey(body), out.EventKey)

	event := storedEvent(t, env, out.EventKey)
	assert.Equal(t, "unknown", event.EventType)
	assert.Equal(t, "not json at all", event.RawBody)
	assert.True(t, len(event.Payload) == 0 || string(event.Payload) == "null")
	assert.True(t, event.Verified)
	assert.False(t, event.Processed)
}

func TestHandleWebhook_CaptureForUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	p := capturedPayment("pay_U1", "order_FROM_OTHER_APP", 1000)

	out := env.svc.HandleWebhook(context.Background(), signedWebhook(webhookBody(t, gateway.EventPaymentCaptured, p, testNow.Unix())))
	assert.Equal(t, WebhookStatusOK, out.Status)
	assert.True(t, storedEvent(t, env, out.EventKey).Processed)
	assert.Zero(t, env.count(t, &models.Payment{}, "1 = 1"))
}

func TestHandleWebhook_CaptureWithoutPaymentEntity(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"event":"payment.captured","payload":{},"created_at":1}`)

	out := env.svc.HandleWebhook(context.Background(), signedWebhook(body))
	assert.Equal(t, WebhookStatusError, out.Status)
	assert.NotEmpty(t, out.Message)

	event := storedEvent(t, env, out.EventKey)
	assert.False(t, event.Processed)
	assert.NotEmpty(t, event.ErrorMessage)
}

func TestHandleWebhook_FailedSettlementRollsBackAndRedeliveryApplies(t *testing.T) {
	env := newTestEnv(t)
	bill, created := env.openBillOrder(t, "500")
	p := capturedPayment("pay_R1", created.GatewayOrderID, 50000)
	req := signedWebhook(webhookBody(t, gateway.EventPaymentCaptured, p, testNow.Unix()))
	ctx := context.Background()

	// the outbox insert is the last write of the settlement transaction
	require.NoError(t, env.db.Exec("ALTER TABLE outbox_effects RENAME TO outbox_effects_offline").Error)

	out := env.svc.HandleWebhook(ctx, req)
	assert.Equal(t, WebhookStatusError, out.Status)

	assert.Equal(t, models.OrderStatusCreated, env.order(t, created.OrderID).Status)
	assert.Zero(t, env.count(t, &models.Payment{}, "1 = 1"))
	assert.Equal(t, int64(1), env.count(t, &models.Bill{}, "bill_id = ? AND bill_status = ?", bill.BillID, models.BillStatusUnpaid))
	event := storedEvent(t, env, out.EventKey)
	assert.False(t, event.Processed)
	assert.NotEmpty(t, event.ErrorMessage)

	require.NoError(t, env.db.Exec("ALTER TABLE outbox_effects_offline RENAME TO outbox_effects").Error)

	out = env.svc.HandleWebhook(ctx, req)
	assert.Equal(t, WebhookStatusOK, out.Status)
	assert.Equal(t, WebhookStatusDuplicate, env.svc.HandleWebhook(ctx, req).Status)

	assert.Equal(t, models.OrderStatusPaid, env.order(t, created.OrderID).Status)
	assert.Equal(t, int64(1), env.count(t, &models.Payment{}, "1 = 1"))
	assert.Equal(t, int64(1), env.count(t, &models.Bill{}, "bill_id = ? AND bill_status = ?", bill.BillID, models.BillStatusPaid))
	assert.Len(t, env.effects(t, models.EffectKindNotification), 1)
	assert.True(t, storedEvent(t, env, out.EventKey).Processed)
}
