package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common provider failures.
var (
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAuthentication     = errors.New("authentication failed")
	ErrContentBlocked     = errors.New("content blocked by safety filters")
	ErrInvalidResponse    = errors.New("invalid provider response")
	ErrNetwork            = errors.New("network error")
)

// ErrorCode represents a provider error code.
type ErrorCode string

const (
	ErrorCodeRateLimit       ErrorCode = "rate_limit"
	ErrorCodeUnavailable     ErrorCode = "service_unavailable"
	ErrorCodeAuth            ErrorCode = "authentication_failed"
	ErrorCodeContentBlocked  ErrorCode = "content_blocked"
	ErrorCodeInvalidResponse ErrorCode = "invalid_response"
	ErrorCodeNetwork         ErrorCode = "network_error"
)

// ProviderError wraps a backend failure with retry metadata.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retryable  bool
	RetryAfter *time.Duration
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether err may succeed on a fresh attempt.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// GetRetryAfter returns the server-requested retry delay, if any.
func GetRetryAfter(err error) *time.Duration {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return nil
}

// CodeOf extracts the error code, or the empty string for non-provider errors.
func CodeOf(err error) ErrorCode {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Code
	}
	return ""
}
