package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillStatus string

const (
	BillStatusUnpaid  BillStatus = "unpaid"
	BillStatusPaid    BillStatus = "paid"
	BillStatusOverdue BillStatus = "overdue"
)

// Valid reports whether s is a known bill status
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPaid, BillStatusOverdue:
		return true
	}
	return false
}

// Bill is owned by the billing domain. Payments only flip it to paid.
type Bill struct {
	BillID             string          `gorm:"type:char(36);primaryKey" json:"bill_id"`
	UserID             string          `gorm:"type:char(36);not null;index" json:"user_id"`
	BillNumber         string          `gorm:"type:varchar(50);not null;uniqueIndex" json:"bill_number"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	BillStatus         BillStatus      `gorm:"type:varchar(16);not null;default:'unpaid';index" json:"bill_status"`
	BillingPeriodStart *time.Time      `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *time.Time      `json:"billing_period_end,omitempty"`
	DueDate            time.Time       `gorm:"not null;index" json:"due_date"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Bill) TableName() string {
	return "bills"
}

func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.BillID == "" {
		b.BillID = uuid.New().String()
	}
	return nil
}
