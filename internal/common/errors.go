// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// Capture pipeline errors.
	ErrInsufficientText    = errors.New("extracted text too short to parse")
	ErrMalformedSuggestion = errors.New("parse result carries no usable field")
	ErrCaptureSuperseded   = errors.New("capture superseded by a newer one")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// GatewayError normalizes every remote failure mode the gateway can hit:
// transport errors, non-2xx responses and malformed bodies. The original
// cause is retained for logging.
type GatewayError struct {
	Err        error
	Op         string
	StatusCode int
	Transient  bool
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps a remote failure. Transport-level failures and
// server 5xx responses are marked transient so retry policy can tell them
// apart from rejections that will never succeed.
func NewGatewayError(op string, statusCode int, err error) *GatewayError {
	return &GatewayError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
		Transient:  statusCode == 0 || statusCode >= 500,
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Transient
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
