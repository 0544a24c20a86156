package payments

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

// Customer is the optional payer contact captured at checkout
type Customer struct {
	Name   string
	Email  string
	Mobile string
}

// CreateOrderInput is a request to open a checkout
type CreateOrderInput struct {
	Amount           decimal.Decimal
	PaymentFor       models.PaymentPurpose
	BillID           string
	ServiceRequestID string
	UserID           string
	Customer         Customer
	Metadata         map[string]interface{}
}

// CreatedOrder is what the client needs to open the checkout widget
type CreatedOrder struct {
	OrderID        string
	GatewayOrderID string
	Amount         decimal.Decimal
	AmountMinor    int64
	Currency       string
	ExpiresAt      time.Time
	KeyID          string
}

// Ledger creates payment orders
type Ledger struct {
	repos   *repository.Repositories
	gateway GatewayClient
	cfg     *Config
	now     func() time.Time
}

// CreateOrder validates the request, registers the order with the gateway
// and stores it. Nothing is written when the gateway call fails.
func (l *Ledger) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	if err := l.validate(ctx, in); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	minor := ToMinorUnits(in.Amount)
	notes := gateway.Notes{
		"order_id": orderID,
		"purpose":  string(in.PaymentFor),
	}
	if in.BillID != "" {
		notes["bill_id"] = in.BillID
	}
	if in.ServiceRequestID != "" {
		notes["service_request_id"] = in.ServiceRequestID
	}
	if in.UserID != "" {
		notes["user_id"] = in.UserID
	}

	gwOrder, err := l.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: l.cfg.Currency,
		Receipt:  orderID,
		Notes:    notes,
	})
	if err != nil {
		log.Errorf("[Payments] Gateway order creation failed for %s: %v", orderID, err)
		return nil, &GatewayError{Op: "create_order", Err: err}
	}

	now := l.now()
	order := &models.PaymentOrder{
		OrderID:          orderID,
		GatewayOrderID:   gwOrder.ID,
		PaymentFor:       in.PaymentFor,
		BillID:           optional(in.BillID),
		ServiceRequestID: optional(in.ServiceRequestID),
		UserID:           optional(in.UserID),
		CustomerName:     strings.TrimSpace(in.Customer.Name),
		CustomerEmail:    strings.TrimSpace(in.Customer.Email),
		CustomerMobile:   strings.TrimSpace(in.Customer.Mobile),
		Amount:           in.Amount,
		Currency:         l.cfg.Currency,
		Status:           models.OrderStatusCreated,
		ExpiresAt:        now.Add(l.cfg.OrderTTL),
	}
	if len(in.Metadata) > 0 {
		order.Metadata = cloneMetadata(in.Metadata)
	}

	err = l.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.PaymentOrder.Create(ctx, order); err != nil {
			return err
		}
		audit, err := auditEffect("order_created:"+order.OrderID, models.AuditPayload{
			EntityType:  entityPaymentOrder,
			EntityID:    order.OrderID,
			Action:      AuditActionCreate,
			PerformedBy: actorOrSystem(in.UserID),
			Details: map[string]interface{}{
				"gateway_order_id": order.GatewayOrderID,
				"amount":           order.Amount.StringFixed(2),
				"payment_for":      string(order.PaymentFor),
			},
		})
		if err != nil {
			return err
		}
		return tx.Outbox.Append(ctx, audit)
	})
	if err != nil {
		log.Errorf("[Payments] Failed to store order %s (gateway order %s): %v", orderID, gwOrder.ID, err)
		return nil, err
	}

	metrics.OrderCreated(string(in.PaymentFor))
	log.Infof("[Payments] Created order %s (gateway %s) for %s %s", order.OrderID, order.GatewayOrderID, order.Amount.StringFixed(2), order.Currency)

	return &CreatedOrder{
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.Amount,
		AmountMinor:    minor,
		Currency:       order.Currency,
		ExpiresAt:      order.ExpiresAt,
		KeyID:          l.cfg.KeyID,
	}, nil
}

func (l *Ledger) validate(ctx context.Context, in CreateOrderInput) error {
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if !in.PaymentFor.Valid() {
		return validationErr("unknown payment purpose %q", in.PaymentFor)
	}

	switch in.PaymentFor {
	case models.PurposeBillPayment:
		if in.BillID == "" {
			return validationErr("billId is required for bill payments")
		}
		bill, err := l.repos.Bill.GetByID(ctx, in.BillID)
		if err != nil {
			return notFoundErr(err, "bill %s", in.BillID)
		}
		if bill.BillStatus == models.BillStatusPaid {
			return fmtConflict("bill %s is already paid", bill.BillNumber)
		}
	case models.PurposeNewConnection:
		if in.ServiceRequestID == "" {
			return validationErr("serviceRequestId is required for new connections")
		}
		if _, err := l.repos.ServiceRequest.GetByID(ctx, in.ServiceRequestID); err != nil {
			return notFoundErr(err, "service request %s", in.ServiceRequestID)
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func actorOrSystem(userID string) string {
	if userID == "" {
		return "system"
	}
	return userID
}

func cloneMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+4)
	for k, v := range in {
		out[k] = v
	}
	return out
}
