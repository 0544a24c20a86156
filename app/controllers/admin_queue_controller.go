package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/jobqueue"
)

// QueueStats is the read side of the job queue shown to operators
type QueueStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// AdminQueueController exposes delivery backlog and outbox history to admins
type AdminQueueController struct {
	queue  QueueStats
	outbox repository.OutboxRepository
}

func NewAdminQueueController(queue QueueStats, outbox repository.OutboxRepository) *AdminQueueController {
	return &AdminQueueController{queue: queue, outbox: outbox}
}

// HandleQueueStats reports job counts and the undelivered outbox backlog
func (aqc *AdminQueueController) HandleQueueStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	pending, err := aqc.outbox.CountPending(ctx)
	if err != nil {
		return respondError(c, err)
	}
	data := fiber.Map{"outboxPending": pending}

	// Redis being down must not hide the database backlog
	if stats, err := aqc.queue.GetJobStats(ctx); err == nil {
		data["jobs"] = stats
	}
	if size, err := aqc.queue.GetQueueSize(ctx); err == nil {
		data["queued"] = size
	}
	if size, err := aqc.queue.GetProcessingSize(ctx); err == nil {
		data["processing"] = size
	}
	return respond(c, fiber.StatusOK, "", data)
}

// HandleOutboxEffects lists every effect recorded for one order or payment
func (aqc *AdminQueueController) HandleOutboxEffects(c *fiber.Ctx) error {
	effects, err := aqc.outbox.ListByAggregate(c.UserContext(), c.Params("aggregateId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"effects": effects})
}
