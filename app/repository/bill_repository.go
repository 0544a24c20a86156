package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
)

type billRepository struct {
	db *gorm.DB
}

// NewBillRepository creates a new bill repository instance
func NewBillRepository(db *gorm.DB) BillRepository {
	return &billRepository{db: db}
}

func (r *billRepository) GetByID(ctx context.Context, billID string) (*models.Bill, error) {
	var bill models.Bill
	if err := r.db.WithContext(ctx).Where("bill_id = ?", billID).First(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListByUserID returns a user's bills ordered by due date. An empty status
// returns every bill.
func (r *billRepository) ListByUserID(ctx context.Context, userID string, status models.BillStatus) ([]models.Bill, error) {
	var bills []models.Bill
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("bill_status = ?", status)
	}
	err := q.Order("due_date ASC").Find(&bills).Error
	return bills, err
}

// MarkPaid flips the bill to paid
func (r *billRepository) MarkPaid(ctx context.Context, billID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Bill{}).
		Where("bill_id = ?", billID).
		Updates(map[string]interface{}{
			"bill_status": models.BillStatusPaid,
			"paid_at":     at,
		}).Error
}
