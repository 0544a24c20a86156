package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/civicpay/civicpay/internal/pkg/env"
	"github.com/civicpay/civicpay/internal/pkg/metrics"
)

const (
	defaultAPIBaseURL = "https://api.razorpay.com/v1"
	defaultTimeout    = 15 * time.Second
	maxResponseBytes  = 2 << 20

	// Name is stored on every payment captured through this client
	Name = "razorpay"
)

// Config holds the credentials and endpoint of the payment gateway
type Config struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string
	Timeout    time.Duration
}

// LoadConfig reads the gateway settings from the environment
func LoadConfig() *Config {
	return &Config{
		KeyID:      strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("RAZORPAY_API_URL", defaultAPIBaseURL)),
		Timeout:    env.GetEnvDuration("RAZORPAY_TIMEOUT", defaultTimeout),
	}
}

// Validate reports missing credentials
func (c *Config) Validate() error {
	if c.KeyID == "" || c.KeySecret == "" {
		return errors.New("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are not configured")
	}
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid RAZORPAY_API_URL: %w", err)
	}
	return nil
}

// Client talks to a Razorpay-compatible REST API with basic auth
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client from cfg
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// KeyID is the public key the checkout widget needs
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers a new order. The amount must already be in minor units.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("gateway: order amount must be positive, got %d", req.Amount)
	}
	var out Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("gateway: create order returned empty id")
	}
	return &out, nil
}

// FetchPayment loads the authoritative payment entity
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("gateway: payment id is required")
	}
	var out Payment
	if err := c.do(ctx, "fetch_payment", http.MethodGet, "/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("gateway: build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveGatewayCall(op, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapped struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error != nil {
			apiErr.Code = wrapped.Error.Code
			apiErr.Description = wrapped.Error.Description
			apiErr.Field = wrapped.Error.Field
		} else {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Description = string(raw)
		}
		log.Warnf("[Gateway] %s failed: status=%d code=%s", op, resp.StatusCode, apiErr.Code)
		return fmt.Errorf("gateway: %s: %w", op, apiErr)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode %s response: %w", op, err)
	}
	return nil
}
