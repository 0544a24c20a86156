package gateway

import (
	"bytes"
	"encoding/json"
)

// Notes is the gateway's free-form key/value map. The API renders an empty
// map as [] so decoding accepts both shapes.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.HasPrefix(trimmed, []byte("[")) {
		*n = Notes{}
		return nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	*n = out
	return nil
}

// OrderRequest creates an order. Amount is in minor units (paisa).
type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Notes    Notes  `json:"notes,omitempty"`
}

// Order is the gateway's order entity
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

type Card struct {
	ID      string `json:"id"`
	Last4   string `json:"last4"`
	Network string `json:"network"`
	Type    string `json:"type"`
	Issuer  string `json:"issuer"`
}

type AcquirerData struct {
	RRN               string `json:"rrn"`
	UPITransactionID  string `json:"upi_transaction_id"`
	BankTransactionID string `json:"bank_transaction_id"`
	AuthCode          string `json:"auth_code"`
}

type UPI struct {
	VPA              string `json:"vpa"`
	PayerAccountType string `json:"payer_account_type"`
}

// Payment is the gateway's payment entity. Amount is in minor units.
type Payment struct {
	ID               string        `json:"id"`
	Entity           string        `json:"entity"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           string        `json:"status"`
	OrderID          string        `json:"order_id"`
	Method           string        `json:"method"`
	Captured         bool          `json:"captured"`
	Description      string        `json:"description"`
	Card             *Card         `json:"card,omitempty"`
	Bank             string        `json:"bank"`
	Wallet           string        `json:"wallet"`
	VPA              string        `json:"vpa"`
	UPI              *UPI          `json:"upi,omitempty"`
	Email            string        `json:"email"`
	Contact          string        `json:"contact"`
	Notes            Notes         `json:"notes"`
	Fee              int64         `json:"fee"`
	Tax              int64         `json:"tax"`
	ErrorCode        string        `json:"error_code"`
	ErrorDescription string        `json:"error_description"`
	ErrorReason      string        `json:"error_reason"`
	AcquirerData     *AcquirerData `json:"acquirer_data,omitempty"`
	CreatedAt        int64         `json:"created_at"`
}

// Refund is the gateway's refund entity
type Refund struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Notes     Notes  `json:"notes"`
	CreatedAt int64  `json:"created_at"`
}

// APIError is the error body the gateway returns on non-2xx responses
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Field       string `json:"field"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return e.Code + ": " + e.Description + " (field " + e.Field + ")"
	}
	return e.Code + ": " + e.Description
}
