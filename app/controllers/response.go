package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/civicpay/civicpay/internal/pkg/payments"
)

// envelope is the body of every JSON API response except the webhook ack
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(envelope{Success: true, Message: message, Data: data})
}

func respondFailure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(envelope{Success: false, Message: message})
}

func respondValidation(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  fields,
	})
}

// respondError maps a payments error to its HTTP status. Unknown errors are
// logged and answered with a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		return respondFailure(c, fiber.StatusBadRequest, "Invalid payment signature")
	case errors.Is(err, payments.ErrValidation):
		return respondFailure(c, fiber.StatusBadRequest, detail(err, payments.ErrValidation))
	case errors.Is(err, payments.ErrNotFound):
		return respondFailure(c, fiber.StatusNotFound, detail(err, payments.ErrNotFound))
	case errors.Is(err, payments.ErrForbidden):
		return respondFailure(c, fiber.StatusForbidden, "Access denied")
	case errors.Is(err, payments.ErrConflict):
		return respondFailure(c, fiber.StatusConflict, detail(err, payments.ErrConflict))
	case errors.Is(err, payments.ErrGateway):
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return respondFailure(c, fiber.StatusBadGateway, "Payment gateway unavailable. Please try again.")
	default:
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return respondFailure(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

// detail strips the sentinel prefix from a wrapped error message
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// clientIP prefers the address reported by the edge proxy
func clientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	return c.IP()
}
