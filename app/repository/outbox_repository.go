package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civicpay/civicpay/app/models"
)

// outboxRepository implements the OutboxRepository interface
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository instance
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Append(ctx context.Context, effects ...*models.OutboxEffect) error {
	if len(effects) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(&effects).Error
}

// GetByID retrieves an effect by id
func (r *outboxRepository) GetByID(ctx context.Context, effectID string) (*models.OutboxEffect, error) {
	var effect models.OutboxEffect
	if err := r.db.WithContext(ctx).Where("effect_id = ?", effectID).First(&effect).Error; err != nil {
		return nil, err
	}
	return &effect, nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.OutboxEffect, error) {
	var effects []models.OutboxEffect
	err := forUpdate(r.db.WithContext(ctx), "SKIP LOCKED").
		Where("dispatched_at IS NULL").
		Where("(enqueued_at IS NULL OR enqueued_at < ?)", staleBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&effects).Error
	return effects, err
}

// MarkEnqueued stamps the effects as handed to the job queue
func (r *outboxRepository) MarkEnqueued(ctx context.Context, effectIDs []string, at time.Time) error {
	if len(effectIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.OutboxEffect{}).
		Where("effect_id IN ?", effectIDs).
		Update("enqueued_at", at).Error
}

// MarkDispatched records that the sink accepted the effect
func (r *outboxRepository) MarkDispatched(ctx context.Context, effectID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEffect{}).
		Where("effect_id = ?", effectID).
		Updates(map[string]interface{}{
			"dispatched_at": at,
			"last_error":    "",
		}).Error
}

// RecordFailure counts a failed delivery attempt
func (r *outboxRepository) RecordFailure(ctx context.Context, effectID, message string) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEffect{}).
		Where("effect_id = ?", effectID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": message,
		}).Error
}

// CountPending counts effects not yet accepted by a sink
func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEffect{}).Where("dispatched_at IS NULL").Count(&count).Error
	return count, err
}

// ListByAggregate returns every effect recorded for one entity, oldest first
func (r *outboxRepository) ListByAggregate(ctx context.Context, aggregateID string) ([]models.OutboxEffect, error) {
	var effects []models.OutboxEffect
	err := r.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&effects).Error
	return effects, err
}
