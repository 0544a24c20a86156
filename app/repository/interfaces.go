package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
)

// PaymentOrderRepository defines the interface for payment order persistence
type PaymentOrderRepository interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	GetByID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	// LockByGatewayOrderID reads the order with a row lock held until the
	// surrounding transaction ends.
	LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	Update(ctx context.Context, orderID string, fields map[string]interface{}) error
}

// PaymentRepository defines the interface for captured payment records
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, paymentID string) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	GetLatestByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	UpdateSnapshot(ctx context.Context, paymentID string, status models.PaymentStatus, gatewayResponse []byte) error
	ListByUserID(ctx context.Context, userID string, offset, limit int) ([]models.Payment, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
}

// WebhookEventRepository defines the interface for webhook delivery records
type WebhookEventRepository interface {
	GetByKey(ctx context.Context, eventKey string) (*models.WebhookEvent, error)
	// Upsert inserts the event or, if the key exists, refreshes only the
	// verification flag. The stored row is returned either way.
	Upsert(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error)
	RecordError(ctx context.Context, eventKey, message string) error
	MarkProcessed(ctx context.Context, eventID string, at time.Time) error
}

// BillRepository defines the interface for the bill operations payments need
type BillRepository interface {
	GetByID(ctx context.Context, billID string) (*models.Bill, error)
	ListByUserID(ctx context.Context, userID string, status models.BillStatus) ([]models.Bill, error)
	MarkPaid(ctx context.Context, billID string, at time.Time) error
}

// ServiceRequestRepository defines the interface for service request updates
type ServiceRequestRepository interface {
	GetByID(ctx context.Context, requestID string) (*models.ServiceRequest, error)
	MarkPaymentReceived(ctx context.Context, requestID string) error
}

// OutboxRepository defines the interface for the transactional outbox
type OutboxRepository interface {
	// Append stores effects, skipping any whose dedup key already exists.
	Append(ctx context.Context, effects ...*models.OutboxEffect) error
	GetByID(ctx context.Context, effectID string) (*models.OutboxEffect, error)
	// ClaimPending locks up to limit undispatched effects that were never
	// enqueued or were enqueued before staleBefore. Must run in a transaction.
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.OutboxEffect, error)
	MarkEnqueued(ctx context.Context, effectIDs []string, at time.Time) error
	MarkDispatched(ctx context.Context, effectID string, at time.Time) error
	RecordFailure(ctx context.Context, effectID, message string) error
	CountPending(ctx context.Context) (int64, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]models.OutboxEffect, error)
}

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	// CreateOnce inserts n unless a notification for the same source effect exists.
	CreateOnce(ctx context.Context, n *models.Notification) (bool, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// AuditLogRepository defines the interface for audit trail rows
type AuditLogRepository interface {
	CreateOnce(ctx context.Context, entry *models.AuditLog) (bool, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	db             *gorm.DB
	PaymentOrder   PaymentOrderRepository
	Payment        PaymentRepository
	WebhookEvent   WebhookEventRepository
	Bill           BillRepository
	ServiceRequest ServiceRequestRepository
	Outbox         OutboxRepository
	Notification   NotificationRepository
	AuditLog       AuditLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:             db,
		PaymentOrder:   NewPaymentOrderRepository(db),
		Payment:        NewPaymentRepository(db),
		WebhookEvent:   NewWebhookEventRepository(db),
		Bill:           NewBillRepository(db),
		ServiceRequest: NewServiceRequestRepository(db),
		Outbox:         NewOutboxRepository(db),
		Notification:   NewNotificationRepository(db),
		AuditLog:       NewAuditLogRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database
// transaction. Returning an error rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
