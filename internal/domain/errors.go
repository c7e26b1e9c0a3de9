package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidArgument marks validation failures on input that an operation received.
// These are never recovered into command results.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidOperation is the single business/state failure kind.
// Command handlers translate errors matching it into failure results.
var ErrInvalidOperation = errors.New("invalid operation")

var (
	ErrNilRequest = fmt.Errorf("%w: request is nil", ErrInvalidArgument)

	ErrDuplicateKey     = fmt.Errorf("%w: request with the same id is already tracked", ErrInvalidOperation)
	ErrNotFound         = fmt.Errorf("%w: request is not tracked", ErrInvalidOperation)
	ErrRequestNotExist  = fmt.Errorf("%w: request does not exist", ErrInvalidOperation)
	ErrAlreadyCompleted = fmt.Errorf("%w: transaction is already completed", ErrInvalidOperation)
	ErrMultipleSenders  = fmt.Errorf("%w: transactions have more than one sender account", ErrInvalidOperation)
)

// IsBusinessError reports whether err is a recoverable business/state failure
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsCancellation reports whether err came from a cancelled or expired context
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
