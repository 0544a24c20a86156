// Package payments creates payment orders and reconciles their state from
// the client verify call and the gateway webhook.
package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
)

// GatewayClient is the subset of the gateway API the pipeline calls
type GatewayClient interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// Roles allowed to read any payment
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Viewer is the authenticated caller of a query
type Viewer struct {
	UserID string
	Role   string
}

func (v Viewer) isAdmin() bool {
	return v.Role == RoleAdmin || v.Role == RoleSuperAdmin
}

// PaymentPage is one page of a payment listing
type PaymentPage struct {
	Payments   []models.Payment
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReceiptGenerator replaces NewReceiptNumber
func WithReceiptGenerator(gen func(time.Time) string) Option {
	return func(s *Service) { s.newReceipt = gen }
}

// Service is the entry point used by the HTTP layer
type Service struct {
	*Ledger
	*Engine

	repos      *repository.Repositories
	now        func() time.Time
	newReceipt func(time.Time) string
}

// NewService wires the ledger and engine on top of repos
func NewService(repos *repository.Repositories, gw GatewayClient, cfg *Config, opts ...Option) *Service {
	s := &Service{repos: repos, now: time.Now, newReceipt: NewReceiptNumber}
	for _, opt := range opts {
		opt(s)
	}
	s.Ledger = &Ledger{repos: repos, gateway: gw, cfg: cfg, now: s.now}
	s.Engine = &Engine{
		repos:      repos,
		gateway:    gw,
		dedup:      NewDedupStore(repos.WebhookEvent, s.now),
		cfg:        cfg,
		now:        s.now,
		newReceipt: s.newReceipt,
	}
	return s
}

// NewServiceFromDB builds a Service with repositories bound to db
func NewServiceFromDB(db *gorm.DB, gw GatewayClient, cfg *Config, opts ...Option) *Service {
	return NewService(repository.NewRepositories(db), gw, cfg, opts...)
}

// ListPayments returns the caller's payments, newest first
func (s *Service) ListPayments(ctx context.Context, userID string, page, limit int) (*PaymentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total, err := s.repos.Payment.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repos.Payment.ListByUserID(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &PaymentPage{
		Payments:   payments,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// GetPayment returns one payment with its order. Only the payer and
// administrators may read it.
func (s *Service) GetPayment(ctx context.Context, paymentID string, viewer Viewer) (*models.Payment, error) {
	payment, err := s.repos.Payment.GetByID(ctx, paymentID)
	if err != nil {
		return nil, notFoundErr(err, "payment %s", paymentID)
	}
	if !payment.IsOwnedBy(viewer.UserID) && !viewer.isAdmin() {
		return nil, ErrForbidden
	}
	return payment, nil
}

// ListBills returns the caller's bills, optionally filtered by status
func (s *Service) ListBills(ctx context.Context, userID, status string) ([]models.Bill, error) {
	st := models.BillStatus(status)
	if status != "" && !st.Valid() {
		return nil, validationErr("unknown bill status %q", status)
	}
	return s.repos.Bill.ListByUserID(ctx, userID, st)
}
