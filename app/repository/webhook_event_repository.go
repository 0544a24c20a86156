package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civicpay/civicpay/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// GetByKey retrieves a delivery by its derived event key
func (r *webhookEventRepository) GetByKey(ctx context.Context, eventKey string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("event_key = ?", eventKey).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) Upsert(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"verified", "updated_at"}),
	}).Create(event).Error
	if err != nil {
		return nil, err
	}
	// On conflict the in-memory id is not the stored one
	return r.GetByKey(ctx, event.EventKey)
}

// RecordError stores a processing error and leaves the event unprocessed so
// a later delivery can retry it.
func (r *webhookEventRepository) RecordError(ctx context.Context, eventKey, message string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_key = ?", eventKey).
		Updates(map[string]interface{}{
			"error_message": message,
			"processed":     false,
			"updated_at":    time.Now(),
		}).Error
}

// MarkProcessed flags the event as fully handled
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":     true,
			"processed_at":  at,
			"error_message": "",
			"updated_at":    at,
		}).Error
}
