package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a payment. A second row for the same transaction id fails
// with gorm.ErrDuplicatedKey.
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID retrieves a payment together with its order
func (r *paymentRepository) GetByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Preload("PaymentOrder").Where("payment_id = ?", paymentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTransactionID retrieves a payment by the gateway payment id
func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetLatestByOrderID retrieves the most recent payment recorded for an order
func (r *paymentRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_order_id = ?", orderID).
		Order("created_at DESC").First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateSnapshot refreshes the status and raw gateway response of an existing payment
func (r *paymentRepository) UpdateSnapshot(ctx context.Context, paymentID string, status models.PaymentStatus, gatewayResponse []byte) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]interface{}{
			"payment_status":   status,
			"gateway_response": datatypes.JSON(gatewayResponse),
			"updated_at":       time.Now(),
		}).Error
}

// ListByUserID retrieves a user's payments, newest first
func (r *paymentRepository) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Preload("PaymentOrder").
		Where("user_id = ?", userID).
		Order("payment_date DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

// CountByUserID counts a user's payments
func (r *paymentRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
