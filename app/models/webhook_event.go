package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent stores every gateway delivery under a derived event key with
// deduplication metadata for idempotent processing. RawBody and Payload are
// written once; later deliveries only refresh Verified.
type WebhookEvent struct {
	EventID      string            `gorm:"type:char(36);primaryKey" json:"event_id"`
	EventKey     string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_key"`
	EventType    string            `gorm:"type:varchar(100);not null;index" json:"event_type"`
	RawBody      string            `gorm:"type:longtext;not null" json:"-"`
	Payload      datatypes.JSON    `gorm:"type:json" json:"payload,omitempty"`
	Verified     bool              `gorm:"not null;default:false;index" json:"verified"`
	Processed    bool              `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	IPAddress    string            `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	Headers      datatypes.JSONMap `gorm:"type:json" json:"headers,omitempty"`
	CreatedAt    time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for WebhookEvent
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// BeforeCreate assigns the event id
func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	return nil
}
