package controllers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/internal/pkg/gateway"
	"github.com/civicpay/civicpay/internal/pkg/payments"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

const requestTimeout = 20 * time.Second

// webhookHeaders are the delivery headers kept with a stored webhook event
var webhookHeaders = []string{
	gateway.SignatureHeader,
	"X-Razorpay-Event-Id",
	fiber.HeaderContentType,
	fiber.HeaderUserAgent,
}

type createOrderRequest struct {
	Amount           decimal.Decimal        `json:"amount"`
	PaymentFor       string                 `json:"paymentFor" validate:"required,oneof=bill_payment new_connection security_deposit reconnection_fee miscellaneous"`
	BillID           string                 `json:"billId" validate:"omitempty,uuid"`
	ServiceRequestID string                 `json:"serviceRequestId" validate:"omitempty,uuid"`
	CustomerName     string                 `json:"customerName" validate:"omitempty,min=1,max=100"`
	CustomerEmail    string                 `json:"customerEmail" validate:"omitempty,email"`
	CustomerMobile   string                 `json:"customerMobile" validate:"omitempty,in_mobile"`
	Metadata         map[string]interface{} `json:"metadata"`
}

type createOrderResponse struct {
	OrderID        string    `json:"orderId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"keyId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required,startswith=order_"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required,startswith=pay_"`
	Signature        string `json:"signature" validate:"required,len=64,hexadecimal"`
}

type verifyPaymentResponse struct {
	OrderID        string `json:"orderId"`
	PaymentID      string `json:"paymentId"`
	ReceiptNumber  string `json:"receiptNumber"`
	AlreadyPaid    bool   `json:"alreadyPaid"`
	AmountMismatch bool   `json:"amountMismatch,omitempty"`
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// PaymentController serves the checkout, verify, history and webhook endpoints
type PaymentController struct {
	svc *payments.Service
}

func NewPaymentController(svc *payments.Service) *PaymentController {
	return &PaymentController{svc: svc}
}

// HandleCreateOrder opens a checkout for the caller
func (pc *PaymentController) HandleCreateOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createOrderRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if fields := validateStruct(req); fields != nil {
		return respondValidation(c, fields)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	order, err := pc.svc.CreateOrder(ctx, payments.CreateOrderInput{
		Amount:           req.Amount,
		PaymentFor:       models.PaymentPurpose(req.PaymentFor),
		BillID:           req.BillID,
		ServiceRequestID: req.ServiceRequestID,
		UserID:           userCtx.UserID,
		Customer: payments.Customer{
			Name:   strings.TrimSpace(req.CustomerName),
			Email:  strings.TrimSpace(req.CustomerEmail),
			Mobile: req.CustomerMobile,
		},
		Metadata: req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusCreated, "Payment order created", createOrderResponse{
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         order.AmountMinor,
		Currency:       order.Currency,
		KeyID:          order.KeyID,
		ExpiresAt:      order.ExpiresAt,
	})
}

// HandleVerifyPayment confirms a checkout from the client callback
func (pc *PaymentController) HandleVerifyPayment(c *fiber.Ctx) error {
	var req verifyPaymentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondFailure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if fields := validateStruct(req); fields != nil {
		return respondValidation(c, fields)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := pc.svc.VerifyPayment(ctx, payments.VerifyInput{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        strings.ToLower(req.Signature),
		ActorID:          usercontext.GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	message := "Payment verified successfully"
	if res.AlreadyPaid {
		message = "Payment already verified"
	}
	return respond(c, fiber.StatusOK, message, verifyPaymentResponse{
		OrderID:        res.OrderID,
		PaymentID:      res.PaymentID,
		ReceiptNumber:  res.ReceiptNumber,
		AlreadyPaid:    res.AlreadyPaid,
		AmountMismatch: res.AmountMismatch,
	})
}

// HandleListPayments returns the caller's payment history
func (pc *PaymentController) HandleListPayments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 || limit < 1 || limit > 100 {
		return respondValidation(c, map[string]string{"page": "page must be >= 1", "limit": "limit must be between 1 and 100"})
	}

	result, err := pc.svc.ListPayments(c.UserContext(), usercontext.GetUserID(c), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{
		"payments": result.Payments,
		"pagination": pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// HandleGetPayment returns one payment to its owner or an administrator
func (pc *PaymentController) HandleGetPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	payment, err := pc.svc.GetPayment(c.UserContext(), c.Params("paymentId"), payments.Viewer{
		UserID: userCtx.UserID,
		Role:   userCtx.Role,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", payment)
}

// HandleWebhook acknowledges every delivery with 200. The outcome in the
// body tells operators what happened; the gateway only looks at the status.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)
	headers := make(map[string]string, len(webhookHeaders))
	for _, h := range webhookHeaders {
		if v := c.Get(h); v != "" {
			headers[h] = v
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out := pc.svc.HandleWebhook(ctx, payments.WebhookRequest{
		RawBody:   rawBody,
		Signature: strings.TrimSpace(c.Get(gateway.SignatureHeader)),
		IPAddress: clientIP(c),
		Headers:   headers,
	})

	body := fiber.Map{"status": out.Status}
	switch out.Status {
	case payments.WebhookStatusDuplicate:
		body["ignored"] = true
	case payments.WebhookStatusIgnored:
		body["reason"] = out.Reason
	case payments.WebhookStatusError:
		body["message"] = out.Message
	}
	return c.Status(fiber.StatusOK).JSON(body)
}
