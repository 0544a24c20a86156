package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/database/dbtest"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/middleware"
	"github.com/civicpay/civicpay/internal/pkg/payments"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testUserID        = "7f9c2d4e-1111-4a3b-9c7d-000000000001"
	otherUserID       = "7f9c2d4e-1111-4a3b-9c7d-000000000002"
)

var (
	testNow       = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	testJWTSecret = []byte("test-access-secret")
)

// stubGateway issues sequential order ids and serves registered payments
type stubGateway struct {
	mu       sync.Mutex
	orders   int
	payments map[string]*gateway.Payment
	err      error
}

func (g *stubGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.orders++
	return &gateway.Order{ID: fmt.Sprintf("order_CTRL%04d", g.orders), Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

func (g *stubGateway) FetchPayment(_ context.Context, id string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist"}
	}
	cp := *p
	return &cp, nil
}

func (g *stubGateway) capture(id, orderID string, minor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &gateway.Payment{
		ID: id, Entity: "payment", Amount: minor, Currency: "INR", Status: "captured",
		OrderID: orderID, Method: "card", Captured: true, Email: "asha@example.com",
		Card:      &gateway.Card{Last4: "1111", Network: "Visa", Type: "debit"},
		CreatedAt: testNow.Unix(),
	}
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	gw  *stubGateway
	svc *payments.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := dbtest.Open(t)
	gw := &stubGateway{payments: map[string]*gateway.Payment{}}
	svc := payments.NewServiceFromDB(db, gw, &payments.Config{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
		OrderTTL:      30 * time.Minute,
	}, payments.WithClock(func() time.Time { return testNow }))

	pc := NewPaymentController(svc)
	bc := NewBillController(svc)

	app := fiber.New()
	app.Use(middleware.UserContextMiddleware(testJWTSecret))
	app.Post("/payments/webhook", pc.HandleWebhook)
	app.Post("/payments/orders", middleware.RequireAuth, pc.HandleCreateOrder)
	app.Post("/payments/verify", middleware.RequireAuth, pc.HandleVerifyPayment)
	app.Get("/payments", middleware.RequireAuth, pc.HandleListPayments)
	app.Get("/payments/:paymentId", middleware.RequireAuth, pc.HandleGetPayment)
	app.Get("/bills", middleware.RequireAuth, bc.HandleListBills)

	return &testApp{app: app, db: db, gw: gw, svc: svc}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := middleware.NewAccessToken(testJWTSecret, userID, role, time.Now())
	require.NoError(t, err)
	return tok
}

func citizenToken(t *testing.T) string {
	return token(t, testUserID, usercontext.RoleCitizen)
}

type apiResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (ta *testApp) do(t *testing.T, method, path, bearer string, body interface{}, headers ...string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeAPI(t *testing.T, raw []byte) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func (ta *testApp) seedBill(t *testing.T, userID, amount string, status models.BillStatus) *models.Bill {
	t.Helper()
	bill := &models.Bill{
		UserID:      userID,
		BillNumber:  fmt.Sprintf("BILL-%d", time.Now().UnixNano()),
		TotalAmount: decimal.RequireFromString(amount),
		BillStatus:  status,
		DueDate:     testNow.AddDate(0, 0, 10),
	}
	require.NoError(t, ta.db.Create(bill).Error)
	return bill
}

func signature(payload, secret string) string {
	return payments.ComputeSignature([]byte(payload), secret)
}
