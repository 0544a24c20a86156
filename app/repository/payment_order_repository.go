package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
)

// paymentOrderRepository implements the PaymentOrderRepository interface
type paymentOrderRepository struct {
	db *gorm.DB
}

// NewPaymentOrderRepository creates a new payment order repository instance
func NewPaymentOrderRepository(db *gorm.DB) PaymentOrderRepository {
	return &paymentOrderRepository{db: db}
}

// Create inserts a new payment order
func (r *paymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID retrieves an order by its internal id
func (r *paymentOrderRepository) GetByID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByGatewayOrderID retrieves an order by the id the gateway assigned
func (r *paymentOrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *paymentOrderRepository) LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := forUpdate(r.db.WithContext(ctx), "").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update writes the given columns of one order
func (r *paymentOrderRepository) Update(ctx context.Context, orderID string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).Where("order_id = ?", orderID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
