package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentMethod is the closed set of instruments the gateway reports
type PaymentMethod string

const (
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodOther      PaymentMethod = "other"
)

// PaymentStatus is the state of a captured transaction record
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment is one captured gateway transaction. TransactionID is the gateway
// payment id and is unique, so the verify call and the webhook converge on
// the same row.
type Payment struct {
	PaymentID       string          `gorm:"type:char(36);primaryKey" json:"payment_id"`
	PaymentOrderID  string          `gorm:"type:char(36);not null;index" json:"payment_order_id"`
	PaymentOrder    *PaymentOrder   `gorm:"foreignKey:PaymentOrderID;references:OrderID" json:"payment_order,omitempty"`
	BillID          *string         `gorm:"type:char(36);index" json:"bill_id,omitempty"`
	UserID          *string         `gorm:"type:char(36);index" json:"user_id,omitempty"`
	TransactionID   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentGateway  string          `gorm:"type:varchar(32);not null" json:"payment_gateway"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	GatewayAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"gateway_amount"`
	AmountMismatch  bool            `gorm:"not null;default:false" json:"amount_mismatch"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(16);not null;index" json:"payment_status"`
	MethodDetails   datatypes.JSON  `gorm:"type:json" json:"method_details,omitempty"`
	GatewayResponse datatypes.JSON  `gorm:"type:json" json:"-"`
	ReceiptNumber   string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"receipt_number"`
	PaymentDate     time.Time       `gorm:"not null;index" json:"payment_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns the internal payment id
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == "" {
		p.PaymentID = uuid.New().String()
	}
	return nil
}

// IsOwnedBy reports whether userID paid for this transaction
func (p *Payment) IsOwnedBy(userID string) bool {
	return p.UserID != nil && userID != "" && *p.UserID == userID
}
