package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/jobqueue"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

// ErrNoSink is returned for an effect kind nobody registered a sink for
var ErrNoSink = errors.New("outbox: no sink for effect kind")

// Sink performs one kind of effect. Deliver may run more than once for the
// same effect and must not duplicate its result.
type Sink interface {
	Deliver(ctx context.Context, effect *models.OutboxEffect) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, effect *models.OutboxEffect) error

func (f SinkFunc) Deliver(ctx context.Context, effect *models.OutboxEffect) error {
	return f(ctx, effect)
}

// Deliverer executes deliver_effect jobs
type Deliverer struct {
	repos *repository.Repositories
	now   func() time.Time

	mu    sync.RWMutex
	sinks map[models.EffectKind]Sink
}

func NewDeliverer(repos *repository.Repositories) *Deliverer {
	return &Deliverer{
		repos: repos,
		now:   time.Now,
		sinks: make(map[models.EffectKind]Sink),
	}
}

// Register sets the sink for kind, replacing any earlier one
func (d *Deliverer) Register(kind models.EffectKind, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[kind] = sink
}

func (d *Deliverer) sinkFor(kind models.EffectKind) (Sink, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sinks[kind]
	return s, ok
}

// Attach registers the deliverer as the queue's deliver_effect handler
func (d *Deliverer) Attach(q *jobqueue.Queue) {
	q.RegisterHandler(jobqueue.JobTypeDeliverEffect, d.HandleJob)
}

// HandleJob is the jobqueue handler for deliver_effect jobs
func (d *Deliverer) HandleJob(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.DeliverEffectJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid deliver payload: %w", err)
	}
	if payload.EffectID == "" {
		return errors.New("deliver payload has no effect id")
	}
	return d.Deliver(ctx, payload.EffectID)
}

// Deliver runs the sink of one effect and stamps it dispatched. An effect
// that no longer exists or was already dispatched is a no-op.
func (d *Deliverer) Deliver(ctx context.Context, effectID string) error {
	effect, err := d.repos.Outbox.GetByID(ctx, effectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Outbox] Effect %s not found, dropping job", effectID)
			return nil
		}
		return fmt.Errorf("load effect %s: %w", effectID, err)
	}
	if effect.IsDispatched() {
		return nil
	}

	sink, ok := d.sinkFor(effect.Kind)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrNoSink, effect.Kind)
	} else {
		err = sink.Deliver(ctx, effect)
	}
	metrics.OutboxDispatched(string(effect.Kind), err)

	if err != nil {
		log.Errorf("[Outbox] Delivering %s effect %s failed (attempt %d): %v", effect.Kind, effect.EffectID, effect.Attempts+1, err)
		if rerr := d.repos.Outbox.RecordFailure(ctx, effect.EffectID, err.Error()); rerr != nil {
			log.Errorf("[Outbox] Failed to record failure of effect %s: %v", effect.EffectID, rerr)
		}
		return err
	}

	if err := d.repos.Outbox.MarkDispatched(ctx, effect.EffectID, d.now().UTC()); err != nil {
		return fmt.Errorf("mark effect %s dispatched: %w", effect.EffectID, err)
	}
	return nil
}

// Outputs are the optional external targets of the default sinks. Leave a
// field nil to turn that output off.
type Outputs struct {
	Mailer  Mailer
	Archive ObjectStore
	Events  MessageWriter
}

// RegisterDefaultSinks wires one sink per effect kind
func (d *Deliverer) RegisterDefaultSinks(out Outputs) {
	d.Register(models.EffectKindAudit, NewAuditSink(d.repos.AuditLog))
	d.Register(models.EffectKindNotification, NewNotificationSink(d.repos.Notification, out.Mailer))
	d.Register(models.EffectKindReceiptArchive, NewReceiptSink(out.Archive))
	d.Register(models.EffectKindPaymentEvent, NewPaymentEventPublisher(out.Events))
}
