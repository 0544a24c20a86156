package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/civicpay/civicpay/internal/pkg/cache"
	"github.com/civicpay/civicpay/internal/pkg/env"
)

const (
	rateLimitMax    = 100
	rateLimitWindow = 15 * time.Minute
)

// NewLimiterStorage stores rate limit counters in Redis so every instance shares them
func NewLimiterStorage() fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := 6379
	if v, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379")); err == nil {
		port = v
	}
	password := env.GetEnv("CACHE_PASSWORD", "")

	if cacheClient := cache.GetClient(); cacheClient != nil {
		if h, p, err := net.SplitHostPort(cacheClient.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// database 2: cache and job queue live in 0
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("RATE_LIMIT_DB", 2),
		Reset:    false,
	})
}

func newLimiter(storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rateLimitMax,
		Expiration: rateLimitWindow,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "civicpay:ratelimit:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
		},
	})
}
