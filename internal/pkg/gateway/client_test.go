package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{KeyID: "rzp_test_key", KeySecret: "secret", APIBaseURL: srv.URL})
}

func TestCreateOrder(t *testing.T) {
	var got OrderRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_ABC123","entity":"order","amount":50000,"currency":"INR","status":"created","notes":[]}`))
	})

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   50000,
		Currency: "INR",
		Notes:    Notes{"purpose": "bill_payment"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC123", order.ID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Empty(t, order.Notes)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, "bill_payment", got.Notes["purpose"])
}

func TestCreateOrder_RejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "INR"})
	assert.Error(t, err)
}

func TestFetchPayment_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_missing", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
	})

	_, err := client.FetchPayment(context.Background(), "pay_missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
}

func TestFetchPayment_DecodesEntity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":"pay_29QQoUBi66xm2f","entity":"payment","amount":50000,"currency":"INR",
			"status":"captured","order_id":"order_ABC123","method":"card",
			"card":{"last4":"1111","network":"Visa","type":"debit"},
			"email":"citizen@example.com","contact":"+919876543210",
			"notes":{"bill_id":"b-1","attempt":2},
			"acquirer_data":{"auth_code":"123456"}
		}`))
	})

	p, err := client.FetchPayment(context.Background(), "pay_29QQoUBi66xm2f")
	require.NoError(t, err)
	assert.Equal(t, "captured", p.Status)
	assert.Equal(t, "order_ABC123", p.OrderID)
	require.NotNil(t, p.Card)
	assert.Equal(t, "1111", p.Card.Last4)
	assert.Equal(t, "b-1", p.Notes["bill_id"])
	assert.Equal(t, "2", p.Notes["attempt"])
	require.NotNil(t, p.AcquirerData)
	assert.Equal(t, "123456", p.AcquirerData.AuthCode)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{KeyID: "k"}).Validate())
	assert.NoError(t, (&Config{KeyID: "k", KeySecret: "s", APIBaseURL: defaultAPIBaseURL}).Validate())
}
