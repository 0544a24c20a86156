package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

const (
	NotificationChannelInApp = "in_app"
	NotificationChannelEmail = "email"
)

// Notification is an in-app message for a citizen. SourceEffectID ties it to
// the outbox effect that produced it so redelivery never duplicates it.
type Notification struct {
	NotificationID    string               `gorm:"type:char(36);primaryKey" json:"notification_id"`
	UserID            string               `gorm:"type:char(36);not null;index" json:"user_id"`
	NotificationType  string               `gorm:"type:varchar(50);not null" json:"notification_type"`
	Title             string               `gorm:"type:varchar(200);not null" json:"title"`
	Message           string               `gorm:"type:text;not null" json:"message"`
	Priority          NotificationPriority `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	RelatedEntityType string               `gorm:"type:varchar(50)" json:"related_entity_type,omitempty"`
	RelatedEntityID   string               `gorm:"type:varchar(64)" json:"related_entity_id,omitempty"`
	DeliveryChannels  datatypes.JSON       `gorm:"type:json" json:"delivery_channels"`
	IsRead            bool                 `gorm:"default:false" json:"is_read"`
	SourceEffectID    string               `gorm:"type:char(36);not null;uniqueIndex" json:"-"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.New().String()
	}
	return nil
}
