package client

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when generic retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRateLimited is returned when the server keeps answering 429 past the throttle budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthRetriesExhausted is returned when the API keeps rejecting refreshed credentials.
	ErrAuthRetriesExhausted = errors.New("authentication retries exhausted")

	// ErrContextCancelled is returned when the context is cancelled while waiting.
	ErrContextCancelled = errors.New("context cancelled")
)

// APIError is the terminal error of a logical request.
type APIError struct {
	Method     string
	Path       string
	StatusCode int // 0 for transport failures
	ErrorClass ErrorClass
	Attempts   int

	// Body is the parsed JSON error payload, or the raw text if it was not JSON.
	Body any

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MyCase %s %s failed", e.Method, e.Path)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d, %s)", e.StatusCode, e.ErrorClass)
	} else {
		fmt.Fprintf(&b, " (%s)", e.ErrorClass)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if msg := e.Message(); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Message extracts a human readable message from the error body, if any.
func (e *APIError) Message() string {
	switch body := e.Body.(type) {
	case string:
		return body
	case map[string]any:
		for _, key := range []string{"message", "error_description", "error", "errors"} {
			if v, ok := body[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
				return fmt.Sprint(v)
			}
		}
	}
	return ""
}

// shouldRetry determines if an error should be retried with generic backoff.
// Auth and rate limit errors have their own budgets and are handled separately.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
