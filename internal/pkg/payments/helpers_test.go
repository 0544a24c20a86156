package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/database/dbtest"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testUserID        = "7f9c2d4e-1111-4a3b-9c7d-000000000001"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// fakeGateway records calls and serves canned payments
type fakeGateway struct {
	mu         sync.Mutex
	orders     []gateway.OrderRequest
	payments   map[string]*gateway.Payment
	createErr  error
	fetchErr   error
	fetchCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*gateway.Payment{}}
}

func (f *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.orders = append(f.orders, req)
	return &gateway.Order{
		ID:       fmt.Sprintf("order_TEST%04d", len(f.orders)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) FetchPayment(_ context.Context, id string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist"}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeGateway) addPayment(p *gateway.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
}

type testEnv struct {
	svc *Service
	gw  *fakeGateway
	db  *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	gw := newFakeGateway()
	cfg := &Config{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
		OrderTTL:      30 * time.Minute,
	}
	var seq int
	var mu sync.Mutex
	svc := NewServiceFromDB(db, gw, cfg,
		WithClock(func() time.Time { return testNow }),
		WithReceiptGenerator(func(time.Time) string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("RCP-TEST-%04d", seq)
		}),
	)
	return &testEnv{svc: svc, gw: gw, db: db}
}

func (e *testEnv) seedBill(t *testing.T, amount string, status models.BillStatus) *models.Bill {
	t.Helper()
	bill := &models.Bill{
		UserID:      testUserID,
		BillNumber:  "BILL-" + fmt.Sprint(time.Now().UnixNano()),
		TotalAmount: decimal.RequireFromString(amount),
		BillStatus:  status,
		DueDate:     testNow.AddDate(0, 0, 10),
	}
	require.NoError(t, e.db.Create(bill).Error)
	return bill
}

// openBillOrder creates a bill and a checkout order for it
func (e *testEnv) openBillOrder(t *testing.T, amount string) (*models.Bill, *CreatedOrder) {
	t.Helper()
	bill := e.seedBill(t, amount, models.BillStatusUnpaid)
	created, err := e.svc.CreateOrder(context.Background(), CreateOrderInput{
		Amount:     decimal.RequireFromString(amount),
		PaymentFor: models.PurposeBillPayment,
		BillID:     bill.BillID,
		UserID:     testUserID,
		Customer:   Customer{Name: "Asha Rao", Email: "asha@example.com", Mobile: "9876543210"},
	})
	require.NoError(t, err)
	return bill, created
}

func capturedPayment(id, gatewayOrderID string, minor int64) *gateway.Payment {
	return &gateway.Payment{
		ID:       id,
		Entity:   "payment",
		Amount:   minor,
		Currency: "INR",
		Status:   "captured",
		OrderID:  gatewayOrderID,
		Method:   "upi",
		VPA:      "asha@okbank",
		Captured: true,
		Email:    "asha@example.com",
		Contact:  "+919876543210",
		AcquirerData: &gateway.AcquirerData{
			RRN: "412345678901",
		},
		CreatedAt: testNow.Unix(),
	}
}

func webhookBody(t *testing.T, event string, p *gateway.Payment, createdAt int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"entity":     "event",
		"account_id": "acc_TEST",
		"event":      event,
		"contains":   []string{"payment"},
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{"entity": p},
		},
		"created_at": createdAt,
	})
	require.NoError(t, err)
	return body
}

func signedWebhook(body []byte) WebhookRequest {
	return WebhookRequest{
		RawBody:   body,
		Signature: ComputeSignature(body, testWebhookSecret),
		IPAddress: "10.0.0.7",
		Headers:   map[string]string{"Content-Type": "application/json"},
	}
}

func checkoutSignature(gatewayOrderID, gatewayPaymentID string) string {
	return ComputeSignature([]byte(gatewayOrderID+"|"+gatewayPaymentID), testKeySecret)
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (e *testEnv) order(t *testing.T, orderID string) *models.PaymentOrder {
	t.Helper()
	var o models.PaymentOrder
	require.NoError(t, e.db.Where("order_id = ?", orderID).First(&o).Error)
	return &o
}

func (e *testEnv) effects(t *testing.T, kind models.EffectKind) []models.OutboxEffect {
	t.Helper()
	var out []models.OutboxEffect
	require.NoError(t, e.db.Where("kind = ?", kind).Order("created_at ASC").Find(&out).Error)
	return out
}

func auditActions(t *testing.T, effects []models.OutboxEffect) []string {
	t.Helper()
	var actions []string
	for _, eff := range effects {
		var p models.AuditPayload
		require.NoError(t, json.Unmarshal(eff.Payload, &p))
		actions = append(actions, p.Action)
	}
	return actions
}

var errBoom = errors.New("boom")
