package payments

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	maxTxAttempts = 3
	retryBackoff  = 25 * time.Millisecond

	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// withRetry reruns fn while it fails with a transient store error
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		log.Warnf("[Payments] %s attempt %d/%d failed, retrying: %v", op, attempt, maxTxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

// isRetryable matches deadlocks, lock wait timeouts and unique key races
// (a concurrent insert of the same transaction id or receipt number).
func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
