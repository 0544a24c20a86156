package payments

import (
	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
)

// MethodDetails describes the instrument of a payment. Exactly one of the
// variant fields is set, matching Kind; Kind other carries none.
type MethodDetails struct {
	Kind       models.PaymentMethod `json:"kind"`
	Card       *CardDetails         `json:"card,omitempty"`
	UPI        *UPIDetails          `json:"upi,omitempty"`
	Netbanking *NetbankingDetails   `json:"netbanking,omitempty"`
	Wallet     *WalletDetails       `json:"wallet,omitempty"`
}

type CardDetails struct {
	Last4   string `json:"last4,omitempty"`
	Network string `json:"network,omitempty"`
	Type    string `json:"type,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
}

type UPIDetails struct {
	VPA string `json:"vpa,omitempty"`
	RRN string `json:"rrn,omitempty"`
}

type NetbankingDetails struct {
	Bank              string `json:"bank,omitempty"`
	BankTransactionID string `json:"bank_transaction_id,omitempty"`
}

type WalletDetails struct {
	Provider string `json:"provider,omitempty"`
}

// ExtractMethodDetails maps the gateway payment onto MethodDetails
func ExtractMethodDetails(p *gateway.Payment) MethodDetails {
	d := MethodDetails{Kind: methodKind(p.Method)}
	switch d.Kind {
	case models.PaymentMethodCard:
		d.Card = &CardDetails{}
		if p.Card != nil {
			d.Card.Last4 = p.Card.Last4
			d.Card.Network = p.Card.Network
			d.Card.Type = p.Card.Type
			d.Card.Issuer = p.Card.Issuer
		}
	case models.PaymentMethodUPI:
		d.UPI = &UPIDetails{VPA: p.VPA}
		if d.UPI.VPA == "" && p.UPI != nil {
			d.UPI.VPA = p.UPI.VPA
		}
		if p.AcquirerData != nil {
			d.UPI.RRN = p.AcquirerData.RRN
		}
	case models.PaymentMethodNetbanking:
		d.Netbanking = &NetbankingDetails{Bank: p.Bank}
		if p.AcquirerData != nil {
			d.Netbanking.BankTransactionID = p.AcquirerData.BankTransactionID
		}
	case models.PaymentMethodWallet:
		d.Wallet = &WalletDetails{Provider: p.Wallet}
	}
	return d
}

func methodKind(method string) models.PaymentMethod {
	switch m := models.PaymentMethod(method); m {
	case models.PaymentMethodCard, models.PaymentMethodUPI,
		models.PaymentMethodNetbanking, models.PaymentMethodWallet:
		return m
	}
	return models.PaymentMethodOther
}
