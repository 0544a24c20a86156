package s3archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/civicpay/civicpay/internal/pkg/env"
)

// Config holds receipt archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "ap-south-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("S3_ARCHIVE_ENABLED", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the required fields once the archive is enabled
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.AccessKeyID == "" {
		return errors.New("S3_ACCESS_KEY_ID is required when the receipt archive is enabled")
	}
	if c.SecretAccessKey == "" {
		return errors.New("S3_SECRET_ACCESS_KEY is required when the receipt archive is enabled")
	}
	if c.BucketName == "" {
		return errors.New("S3_BUCKET_NAME is required when the receipt archive is enabled")
	}
	return nil
}

// IsEnabled returns true if receipts should be archived
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// ReceiptKey builds the object key of an archived receipt.
// Format: receipts/YYYY/MM/<receipt>.json
func ReceiptKey(receiptNumber string, paidAt time.Time) string {
	paidAt = paidAt.UTC()
	return fmt.Sprintf("receipts/%04d/%02d/%s.json", paidAt.Year(), int(paidAt.Month()), receiptNumber)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}
