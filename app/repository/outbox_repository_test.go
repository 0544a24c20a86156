package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/database/dbtest"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func effect(key, aggregate string, offset time.Duration) *models.OutboxEffect {
	return &models.OutboxEffect{
		Kind:          models.EffectKindAudit,
		DedupKey:      key,
		AggregateType: "payment_order",
		AggregateID:   aggregate,
		Payload:       []byte(`{}`),
		CreatedAt:     baseTime.Add(offset),
	}
}

func TestOutboxRepository_AppendSkipsDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(dbtest.Open(t))

	require.NoError(t, repos.Outbox.Append(ctx, effect("audit:1", "order-1", 0), effect("audit:2", "order-1", time.Second)))
	require.NoError(t, repos.Outbox.Append(ctx, effect("audit:1", "order-1", 2*time.Second)))
	require.NoError(t, repos.Outbox.Append(ctx))

	pending, err := repos.Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	listed, err := repos.Outbox.ListByAggregate(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "audit:1", listed[0].DedupKey)
	assert.Equal(t, "audit:2", listed[1].DedupKey)
}

func TestOutboxRepository_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(dbtest.Open(t))

	first := effect("audit:a", "order-a", 0)
	second := effect("audit:b", "order-b", time.Second)
	require.NoError(t, repos.Outbox.Append(ctx, first, second))

	var claimed []models.OutboxEffect
	require.NoError(t, repos.Transaction(ctx, func(tx *Repositories) error {
		var err error
		claimed, err = tx.Outbox.ClaimPending(ctx, 1, baseTime)
		if err != nil {
			return err
		}
		return tx.Outbox.MarkEnqueued(ctx, []string{claimed[0].EffectID}, baseTime.Add(time.Minute))
	}))
	require.Len(t, claimed, 1)
	assert.Equal(t, first.EffectID, claimed[0].EffectID)

	// enqueued recently, so only the second one is still claimable
	again, err := repos.Outbox.ClaimPending(ctx, 10, baseTime.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, second.EffectID, again[0].EffectID)

	// stale enqueue becomes claimable again
	stale, err := repos.Outbox.ClaimPending(ctx, 10, baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	require.NoError(t, repos.Outbox.RecordFailure(ctx, first.EffectID, "smtp: timeout"))
	got, err := repos.Outbox.GetByID(ctx, first.EffectID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "smtp: timeout", got.LastError)

	require.NoError(t, repos.Outbox.MarkDispatched(ctx, first.EffectID, baseTime.Add(3*time.Minute)))
	got, err = repos.Outbox.GetByID(ctx, first.EffectID)
	require.NoError(t, err)
	assert.True(t, got.IsDispatched())
	assert.Empty(t, got.LastError)

	pending, err := repos.Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestNotificationRepository_CreateOnce(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(dbtest.Open(t))

	build := func() *models.Notification {
		return &models.Notification{
			UserID:           "7f9c2d4e-1111-4a3b-9c7d-000000000001",
			NotificationType: "payment_success",
			Title:            "Payment received",
			Message:          "Your payment was received.",
			DeliveryChannels: []byte(`["in_app"]`),
			SourceEffectID:   "0b6f3c7a-2222-4c1d-8e9f-000000000001",
		}
	}

	created, err := repos.Notification.CreateOnce(ctx, build())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Notification.CreateOnce(ctx, build())
	require.NoError(t, err)
	assert.False(t, created)

	items, err := repos.Notification.ListByUserID(ctx, "7f9c2d4e-1111-4a3b-9c7d-000000000001", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
