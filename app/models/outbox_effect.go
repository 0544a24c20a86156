package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EffectKind selects the sink an outbox effect is delivered to
type EffectKind string

const (
	EffectKindAudit          EffectKind = "audit"
	EffectKindNotification   EffectKind = "notification"
	EffectKindReceiptArchive EffectKind = "receipt_archive"
	EffectKindPaymentEvent   EffectKind = "payment_event"
)

// OutboxEffect is a side effect recorded in the same transaction as the
// state change that caused it. DedupKey makes a repeated append a no-op.
type OutboxEffect struct {
	EffectID      string         `gorm:"type:char(36);primaryKey" json:"effect_id"`
	Kind          EffectKind     `gorm:"type:varchar(32);not null;index" json:"kind"`
	DedupKey      string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"dedup_key"`
	AggregateType string         `gorm:"type:varchar(50);not null" json:"aggregate_type"`
	AggregateID   string         `gorm:"type:varchar(64);not null;index" json:"aggregate_id"`
	Payload       datatypes.JSON `gorm:"type:json" json:"payload"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	EnqueuedAt    *time.Time     `gorm:"index" json:"enqueued_at,omitempty"`
	DispatchedAt  *time.Time     `gorm:"index" json:"dispatched_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for OutboxEffect
func (OutboxEffect) TableName() string {
	return "outbox_effects"
}

// BeforeCreate assigns the effect id
func (e *OutboxEffect) BeforeCreate(tx *gorm.DB) error {
	if e.EffectID == "" {
		e.EffectID = uuid.New().String()
	}
	return nil
}

// IsDispatched reports whether a sink already accepted the effect
func (e *OutboxEffect) IsDispatched() bool {
	return e.DispatchedAt != nil
}
