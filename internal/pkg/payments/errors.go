package payments

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds callers map to transport responses
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrConflict         = errors.New("conflict")
	ErrGateway          = errors.New("payment gateway error")
	ErrNotImplemented   = errors.New("not implemented")
)

// GatewayError wraps a failed gateway call
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrGateway) match any GatewayError
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFoundErr turns a missing row into ErrNotFound and passes other errors through
func notFoundErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func fmtConflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
