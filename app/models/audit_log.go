package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is an append-only record of a state-changing action
type AuditLog struct {
	AuditID        string            `gorm:"type:char(36);primaryKey" json:"audit_id"`
	EntityType     string            `gorm:"type:varchar(50);not null;index:idx_audit_logs_entity,priority:1" json:"entity_type"`
	EntityID       string            `gorm:"type:varchar(64);not null;index:idx_audit_logs_entity,priority:2" json:"entity_id"`
	Action         string            `gorm:"type:varchar(50);not null" json:"action"`
	PerformedBy    string            `gorm:"type:varchar(64)" json:"performed_by,omitempty"`
	Details        datatypes.JSONMap `gorm:"type:json" json:"details,omitempty"`
	SourceEffectID string            `gorm:"type:char(36);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.AuditID == "" {
		a.AuditID = uuid.New().String()
	}
	return nil
}
