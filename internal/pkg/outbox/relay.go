// Package outbox moves recorded side effects from the database to their
// sinks: the relay hands pending effects to the job queue and the deliverer
// executes them.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/jobqueue"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

// Enqueuer is the part of the job queue the relay needs
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Relay polls the outbox table and enqueues a deliver job per pending effect
type Relay struct {
	repos *repository.Repositories
	queue Enqueuer
	cfg   *Config
	now   func() time.Time
}

func NewRelay(repos *repository.Repositories, queue Enqueuer, cfg *Config) *Relay {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()
	return &Relay{repos: repos, queue: queue, cfg: cfg, now: time.Now}
}

// RelayOnce claims one batch and enqueues it. Effects whose enqueue fails
// stay unstamped and are picked up by the next poll. It returns the number
// of effects handed to the queue.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	now := r.now().UTC()
	enqueued := 0

	err := r.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		effects, err := tx.Outbox.ClaimPending(ctx, r.cfg.BatchSize, now.Add(-r.cfg.RequeueAfter))
		if err != nil {
			return fmt.Errorf("claim pending effects: %w", err)
		}
		if len(effects) == 0 {
			return nil
		}

		ids := make([]string, 0, len(effects))
		for _, effect := range effects {
			payload := jobqueue.DeliverEffectJobPayload{EffectID: effect.EffectID, Kind: string(effect.Kind)}
			if _, err := r.queue.EnqueueJob(ctx, jobqueue.JobTypeDeliverEffect, payload.ToMap()); err != nil {
				log.Warnf("[Outbox] Failed to enqueue effect %s (%s): %v", effect.EffectID, effect.Kind, err)
				continue
			}
			ids = append(ids, effect.EffectID)
		}

		if err := tx.Outbox.MarkEnqueued(ctx, ids, now); err != nil {
			return fmt.Errorf("mark effects enqueued: %w", err)
		}
		enqueued = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if enqueued > 0 {
		log.Debugf("[Outbox] Enqueued %d effects", enqueued)
	}

	if pending, err := r.repos.Outbox.CountPending(ctx); err == nil {
		metrics.SetOutboxPending(pending)
	}
	return enqueued, nil
}

// Task wraps the relay for the job queue manager
func (r *Relay) Task() jobqueue.PeriodicTask {
	return jobqueue.PeriodicTask{
		Name:     "outbox relay",
		Interval: r.cfg.PollInterval,
		Run: func(ctx context.Context) error {
			_, err := r.RelayOnce(ctx)
			return err
		},
	}
}
