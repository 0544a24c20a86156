package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
)

type serviceRequestRepository struct {
	db *gorm.DB
}

// NewServiceRequestRepository creates a new service request repository instance
func NewServiceRequestRepository(db *gorm.DB) ServiceRequestRepository {
	return &serviceRequestRepository{db: db}
}

func (r *serviceRequestRepository) GetByID(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *serviceRequestRepository) MarkPaymentReceived(ctx context.Context, requestID string) error {
	return r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("request_id = ?", requestID).
		Update("status", models.ServiceRequestPaymentReceived).Error
}
