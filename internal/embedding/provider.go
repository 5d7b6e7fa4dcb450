package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Result is what a provider returns for one text
type Result struct {
	Vector    []float32
	ModelID   string
	Dimension int
}

// Provider generates embedding vectors. The model itself is an external
// capability; this interface is the whole contract the rest of the system
// depends on.
type Provider interface {
	Embed(ctx context.Context, text, modelHint string) (*Result, error)
}

// ErrorCategory classifies provider failures for retry decisions
type ErrorCategory int

const (
	// ErrorCategoryUnknown - unclassified error, treated as retryable
	ErrorCategoryUnknown ErrorCategory = iota

	// ErrorCategoryTransient - temporary failures that may succeed on retry
	// Examples: timeout, rate limit (429), server error (5xx), network error
	ErrorCategoryTransient

	// ErrorCategoryPermanent - errors that will not succeed on retry
	// Examples: auth error (401/403), input rejected (400/422)
	ErrorCategoryPermanent
)

// String returns a human-readable category name
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryTransient:
		return "transient"
	case ErrorCategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error wraps a provider failure with its retry classification
type Error struct {
	Category   ErrorCategory
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err is a provider failure that retrying cannot
// fix. Unknown errors count as retryable; a job only dead-letters early when
// the provider explicitly rejected the input.
func IsPermanent(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Category == ErrorCategoryPermanent
	}
	return false
}

// ClassifyHTTPError classifies a provider HTTP response error
func ClassifyHTTPError(statusCode int, body string) *Error {
	err := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, truncateString(body, 200)),
	}

	switch {
	// Rate limiting - always retryable
	case statusCode == http.StatusTooManyRequests:
		err.Category = ErrorCategoryTransient

	// Server errors - retryable
	case statusCode >= 500 && statusCode < 600:
		err.Category = ErrorCategoryTransient

	// Request timeout - retryable
	case statusCode == http.StatusRequestTimeout:
		err.Category = ErrorCategoryTransient

	// Auth errors - NOT retryable
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err.Category = ErrorCategoryPermanent

	// Input rejected - NOT retryable
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		err.Category = ErrorCategoryPermanent

	// Not found (bad model id) - NOT retryable
	case statusCode == http.StatusNotFound:
		err.Category = ErrorCategoryPermanent

	default:
		err.Category = ErrorCategoryUnknown
	}

	return err
}

// ClassifyError classifies a general transport error
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr
	}

	errStr := err.Error()

	// Context timeout/cancellation
	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return &Error{
			Category: ErrorCategoryTransient,
			Message:  "request timed out",
			Cause:    err,
		}
	}

	// Network errors - connection issues
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "EOF") {
		return &Error{
			Category: ErrorCategoryTransient,
			Message:  fmt.Sprintf("network error: %s", truncateString(errStr, 100)),
			Cause:    err,
		}
	}

	return &Error{
		Category: ErrorCategoryUnknown,
		Message:  truncateString(errStr, 200),
		Cause:    err,
	}
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
