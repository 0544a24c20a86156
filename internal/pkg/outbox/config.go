package outbox

import (
	"strings"
	"time"

	"github.com/civicpay/civicpay/internal/pkg/env"
)

// Config controls the relay loop and the payment event publisher
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// RequeueAfter is how long an enqueued but undelivered effect waits
	// before the relay hands it to the queue again.
	RequeueAfter time.Duration
	Workers      int

	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() *Config {
	cfg := &Config{
		PollInterval: env.GetEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize:    env.GetEnvInt("OUTBOX_BATCH_SIZE", 100),
		RequeueAfter: env.GetEnvDuration("OUTBOX_REQUEUE_AFTER", 5*time.Minute),
		Workers:      env.GetEnvInt("OUTBOX_WORKERS", 3),
		KafkaBrokers: splitList(env.GetEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   env.GetEnv("KAFKA_PAYMENT_TOPIC", "civicpay.payments"),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.RequeueAfter <= 0 {
		c.RequeueAfter = 5 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 3
	}
}

// KafkaEnabled reports whether payment events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
