package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceRequestStatus string

const (
	ServiceRequestSubmitted       ServiceRequestStatus = "submitted"
	ServiceRequestPaymentPending  ServiceRequestStatus = "payment_pending"
	ServiceRequestPaymentReceived ServiceRequestStatus = "payment_received"
	ServiceRequestInProgress      ServiceRequestStatus = "in_progress"
	ServiceRequestCompleted       ServiceRequestStatus = "completed"
	ServiceRequestRejected        ServiceRequestStatus = "rejected"
)

// ServiceRequest is a citizen request (new connection, reconnection) that
// may require an upfront payment.
type ServiceRequest struct {
	RequestID   string               `gorm:"type:char(36);primaryKey" json:"request_id"`
	UserID      string               `gorm:"type:char(36);not null;index" json:"user_id"`
	RequestType string               `gorm:"type:varchar(50);not null" json:"request_type"`
	Status      ServiceRequestStatus `gorm:"type:varchar(20);not null;default:'submitted';index" json:"status"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	return nil
}
