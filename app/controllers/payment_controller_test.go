package controllers

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

func (ta *testApp) createBillOrder(t *testing.T, amount string) (*models.Bill, createOrderResponse) {
	t.Helper()
	bill := ta.seedBill(t, testUserID, amount, models.BillStatusUnpaid)
	status, raw := ta.do(t, "POST", "/payments/orders", citizenToken(t), map[string]interface{}{
		"amount":         json.Number(amount),
		"paymentFor":     "bill_payment",
		"billId":         bill.BillID,
		"customerName":   "Asha Rao",
		"customerEmail":  "asha@example.com",
		"customerMobile": "9876543210",
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	resp := decodeAPI(t, raw)
	require.True(t, resp.Success)
	var order createOrderResponse
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	return bill, order
}

func (ta *testApp) verify(t *testing.T, gatewayOrderID, paymentID string) (int, apiResponse) {
	t.Helper()
	status, raw := ta.do(t, "POST", "/payments/verify", citizenToken(t), verifyPaymentRequest{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        signature(gatewayOrderID+"|"+paymentID, testKeySecret),
	})
	return status, decodeAPI(t, raw)
}

func TestCreateOrder(t *testing.T) {
	ta := newTestApp(t)
	_, order := ta.createBillOrder(t, "500")

	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, "order_CTRL0001", order.GatewayOrderID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_key", order.KeyID)
	assert.Equal(t, testNow.Add(30*time.Minute), order.ExpiresAt.UTC())
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	ta := newTestApp(t)
	status, _ := ta.do(t, "POST", "/payments/orders", "", map[string]interface{}{"amount": 10, "paymentFor": "miscellaneous"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateOrder_Validation(t *testing.T) {
	ta := newTestApp(t)
	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{name: "unknown purpose", body: map[string]interface{}{"amount": 10, "paymentFor": "donation"}, field: "paymentFor"},
		{name: "bad mobile", body: map[string]interface{}{"amount": 10, "paymentFor": "miscellaneous", "customerMobile": "12345"}, field: "customerMobile"},
		{name: "bad email", body: map[string]interface{}{"amount": 10, "paymentFor": "miscellaneous", "customerEmail": "nope"}, field: "customerEmail"},
		{name: "bad bill id", body: map[string]interface{}{"amount": 10, "paymentFor": "bill_payment", "billId": "42"}, field: "billId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := ta.do(t, "POST", "/payments/orders", citizenToken(t), tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			resp := decodeAPI(t, raw)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Errors, tt.field)
		})
	}

	status, raw := ta.do(t, "POST", "/payments/orders", citizenToken(t), map[string]interface{}{"amount": -5, "paymentFor": "miscellaneous"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, decodeAPI(t, raw).Success)

	status, _ = ta.do(t, "POST", "/payments/orders", citizenToken(t), []byte(`{"amount":`))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	ta := newTestApp(t)
	paid := ta.seedBill(t, testUserID, "250", models.BillStatusPaid)

	status, raw := ta.do(t, "POST", "/payments/orders", citizenToken(t), map[string]interface{}{
		"amount": 250, "paymentFor": "bill_payment", "billId": paid.BillID,
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, decodeAPI(t, raw).Message, "already paid")

	status, _ = ta.do(t, "POST", "/payments/orders", citizenToken(t), map[string]interface{}{
		"amount": 250, "paymentFor": "bill_payment", "billId": "3b241101-e2bb-4255-8caf-4136c566a962",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	ta.gw.err = errors.New("connection reset by peer")
	status, raw = ta.do(t, "POST", "/payments/orders", citizenToken(t), map[string]interface{}{
		"amount": 100, "paymentFor": "miscellaneous",
	})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.NotContains(t, string(raw), "connection reset")
}

func TestVerifyPayment(t *testing.T) {
	ta := newTestApp(t)
	bill, order := ta.createBillOrder(t, "500")
	ta.gw.capture("pay_CTRL0001", order.GatewayOrderID, 50000)

	status, resp := ta.verify(t, order.GatewayOrderID, "pay_CTRL0001")
	require.Equal(t, fiber.StatusOK, status, resp.Message)
	var first verifyPaymentResponse
	require.NoError(t, json.Unmarshal(resp.Data, &first))
	assert.Equal(t, order.OrderID, first.OrderID)
	assert.NotEmpty(t, first.PaymentID)
	assert.NotEmpty(t, first.ReceiptNumber)
	assert.False(t, first.AlreadyPaid)

	status, resp = ta.verify(t, order.GatewayOrderID, "pay_CTRL0001")
	require.Equal(t, fiber.StatusOK, status)
	var second verifyPaymentResponse
	require.NoError(t, json.Unmarshal(resp.Data, &second))
	assert.True(t, second.AlreadyPaid)
	assert.Equal(t, first.PaymentID, second.PaymentID)

	var stored models.Bill
	require.NoError(t, ta.db.Where("bill_id = ?", bill.BillID).First(&stored).Error)
	assert.Equal(t, models.BillStatusPaid, stored.BillStatus)
}

func TestVerifyPayment_Rejections(t *testing.T) {
	ta := newTestApp(t)
	_, order := ta.createBillOrder(t, "500")

	status, raw := ta.do(t, "POST", "/payments/verify", citizenToken(t), verifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: "pay_CTRL0001",
		Signature:        signature(order.GatewayOrderID+"|pay_OTHER", testKeySecret),
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid payment signature", decodeAPI(t, raw).Message)

	status, _ = ta.verify(t, "order_UNKNOWN", "pay_CTRL0001")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw = ta.do(t, "POST", "/payments/verify", citizenToken(t), verifyPaymentRequest{
		GatewayOrderID:   "ord_bad",
		GatewayPaymentID: "pay_CTRL0001",
		Signature:        "abc",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	resp := decodeAPI(t, raw)
	assert.Contains(t, resp.Errors, "gatewayOrderId")
	assert.Contains(t, resp.Errors, "signature")
}

func TestListAndGetPayments(t *testing.T) {
	ta := newTestApp(t)
	_, order := ta.createBillOrder(t, "500")
	ta.gw.capture("pay_CTRL0001", order.GatewayOrderID, 50000)
	_, resp := ta.verify(t, order.GatewayOrderID, "pay_CTRL0001")
	var verified verifyPaymentResponse
	require.NoError(t, json.Unmarshal(resp.Data, &verified))

	status, raw := ta.do(t, "GET", "/payments?page=1&limit=10", citizenToken(t), nil)
	require.Equal(t, fiber.StatusOK, status)
	var list struct {
		Payments   []models.Payment `json:"payments"`
		Pagination pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(decodeAPI(t, raw).Data, &list))
	require.Len(t, list.Payments, 1)
	assert.Equal(t, pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, list.Pagination)

	status, _ = ta.do(t, "GET", "/payments?limit=500", citizenToken(t), nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	path := "/payments/" + verified.PaymentID
	status, raw = ta.do(t, "GET", path, citizenToken(t), nil)
	require.Equal(t, fiber.StatusOK, status)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(decodeAPI(t, raw).Data, &payment))
	assert.Equal(t, "pay_CTRL0001", payment.TransactionID)
	require.NotNil(t, payment.PaymentOrder)
	assert.Equal(t, order.OrderID, payment.PaymentOrder.OrderID)

	status, _ = ta.do(t, "GET", path, token(t, otherUserID, usercontext.RoleCitizen), nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = ta.do(t, "GET", path, token(t, otherUserID, usercontext.RoleAdmin), nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = ta.do(t, "GET", "/payments/3b241101-e2bb-4255-8caf-4136c566a962", citizenToken(t), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	ta := newTestApp(t)
	_, order := ta.createBillOrder(t, "500")

	body, err := json.Marshal(map[string]interface{}{
		"entity": "event",
		"event":  gateway.EventPaymentCaptured,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{"entity": map[string]interface{}{
				"id": "pay_HOOK0001", "entity": "payment", "amount": 50000, "currency": "INR",
				"status": "captured", "order_id": order.GatewayOrderID, "method": "upi", "vpa": "asha@okbank",
			}},
		},
		"created_at": testNow.Unix(),
	})
	require.NoError(t, err)
	sig := signature(string(body), testWebhookSecret)

	decode := func(raw []byte) map[string]interface{} {
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &out))
		return out
	}

	status, raw := ta.do(t, "POST", "/payments/webhook", "", body, gateway.SignatureHeader, sig)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", decode(raw)["status"])

	status, raw = ta.do(t, "POST", "/payments/webhook", "", body, gateway.SignatureHeader, sig)
	assert.Equal(t, fiber.StatusOK, status)
	dup := decode(raw)
	assert.Equal(t, "duplicate", dup["status"])
	assert.Equal(t, true, dup["ignored"])

	status, raw = ta.do(t, "POST", "/payments/webhook", "", []byte(`{"event":"payment.captured","created_at":1}`), gateway.SignatureHeader, "00")
	assert.Equal(t, fiber.StatusOK, status)
	ignored := decode(raw)
	assert.Equal(t, "ignored", ignored["status"])
	assert.Equal(t, "invalid_signature", ignored["reason"])

	var stored models.PaymentOrder
	require.NoError(t, ta.db.Where("order_id = ?", order.OrderID).First(&stored).Error)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}
