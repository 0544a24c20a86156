package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
)

// EventAttrs are the fields written when a delivery is first seen
type EventAttrs struct {
	EventType string
	RawBody   []byte
	Verified  bool
	IPAddress string
	Headers   map[string]string
}

// DedupStore is the idempotency gate for webhook deliveries
type DedupStore struct {
	events repository.WebhookEventRepository
	now    func() time.Time
}

func NewDedupStore(events repository.WebhookEventRepository, now func() time.Time) *DedupStore {
	if now == nil {
		now = time.Now
	}
	return &DedupStore{events: events, now: now}
}

// UpsertEvent stores the delivery. A known key only gets its verification
// flag refreshed; body and payload keep their first values.
func (d *DedupStore) UpsertEvent(ctx context.Context, key string, attrs EventAttrs) (*models.WebhookEvent, error) {
	event := &models.WebhookEvent{
		EventKey:  key,
		EventType: attrs.EventType,
		RawBody:   string(attrs.RawBody),
		Verified:  attrs.Verified,
		IPAddress: attrs.IPAddress,
	}
	if event.EventType == "" {
		event.EventType = "unknown"
	}
	if json.Valid(attrs.RawBody) {
		event.Payload = append([]byte(nil), attrs.RawBody...)
	}
	if len(attrs.Headers) > 0 {
		event.Headers = make(map[string]interface{}, len(attrs.Headers))
		for k, v := range attrs.Headers {
			event.Headers[k] = v
		}
	}
	return d.events.Upsert(ctx, event)
}

// IsDuplicate reports whether the key was already processed
func (d *DedupStore) IsDuplicate(ctx context.Context, key string) (bool, error) {
	event, err := d.events.GetByKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return event.Processed, nil
}

// RecordError stores why the latest attempt did not complete
func (d *DedupStore) RecordError(ctx context.Context, key, message string) error {
	return d.events.RecordError(ctx, key, message)
}

func (d *DedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	return d.events.MarkProcessed(ctx, eventID, d.now())
}
