package payments

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/civicpay/civicpay/internal/pkg/env"
)

const (
	defaultCurrency = "INR"
	// checkout orders always expire 30 minutes after creation
	defaultOrderTTL = 30 * time.Minute
)

// MaxOrderAmount is the largest amount a single order may carry
var MaxOrderAmount = decimal.NewFromInt(10_000_000)

// Config holds the secrets and limits of the payment pipeline
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	OrderTTL      time.Duration
}

// LoadConfig reads the payment settings from the environment and fails when
// any gateway secret is missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		KeyID:         strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:     strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")),
		Currency:      strings.ToUpper(strings.TrimSpace(env.GetEnv("PAYMENT_CURRENCY", defaultCurrency))),
		OrderTTL:      defaultOrderTTL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing secrets and fills defaults
func (c *Config) Validate() error {
	var missing []string
	if c.KeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.KeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "RAZORPAY_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required payment secrets: " + strings.Join(missing, ", "))
	}
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.OrderTTL <= 0 {
		c.OrderTTL = defaultOrderTTL
	}
	return nil
}
