package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentPurpose is what a checkout pays for
type PaymentPurpose string

const (
	PurposeBillPayment     PaymentPurpose = "bill_payment"
	PurposeNewConnection   PaymentPurpose = "new_connection"
	PurposeSecurityDeposit PaymentPurpose = "security_deposit"
	PurposeReconnectionFee PaymentPurpose = "reconnection_fee"
	PurposeMiscellaneous   PaymentPurpose = "miscellaneous"
)

// Valid reports whether p is one of the known purposes
func (p PaymentPurpose) Valid() bool {
	switch p {
	case PurposeBillPayment, PurposeNewConnection, PurposeSecurityDeposit,
		PurposeReconnectionFee, PurposeMiscellaneous:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of a PaymentOrder
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// PaymentOrder is one checkout attempt. GatewayOrderID is assigned once at
// creation and never changes.
type PaymentOrder struct {
	OrderID          string            `gorm:"type:char(36);primaryKey" json:"order_id"`
	GatewayOrderID   string            `gorm:"type:varchar(64);not null;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID *string           `gorm:"type:varchar(64);index" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string           `gorm:"type:varchar(128)" json:"-"`
	PaymentFor       PaymentPurpose    `gorm:"type:varchar(32);not null;index" json:"payment_for"`
	BillID           *string           `gorm:"type:char(36);index" json:"bill_id,omitempty"`
	ServiceRequestID *string           `gorm:"type:char(36);index" json:"service_request_id,omitempty"`
	UserID           *string           `gorm:"type:char(36);index" json:"user_id,omitempty"`
	CustomerName     string            `gorm:"type:varchar(100)" json:"customer_name,omitempty"`
	CustomerEmail    string            `gorm:"type:varchar(191)" json:"customer_email,omitempty"`
	CustomerMobile   string            `gorm:"type:varchar(15)" json:"customer_mobile,omitempty"`
	Amount           decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string            `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	Status           OrderStatus       `gorm:"type:varchar(16);not null;default:'created';index" json:"status"`
	ExpiresAt        time.Time         `gorm:"not null" json:"expires_at"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for PaymentOrder
func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// BeforeCreate assigns the internal order id
func (o *PaymentOrder) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == "" {
		o.OrderID = uuid.New().String()
	}
	if o.Currency == "" {
		o.Currency = "INR"
	}
	if o.Status == "" {
		o.Status = OrderStatusCreated
	}
	return nil
}

// IsPaid reports whether the order reached its final paid state
func (o *PaymentOrder) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// IsExpired reports whether the checkout window has closed at now
func (o *PaymentOrder) IsExpired(now time.Time) bool {
	return o.Status == OrderStatusCreated && now.After(o.ExpiresAt)
}
