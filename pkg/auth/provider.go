// Package auth supplies bearer credentials for MyCase API requests and renews
// them when the API rejects a token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrNoTokens is returned when no tokens have been stored yet.
	ErrNoTokens = errors.New("no tokens available")

	// ErrReauthorize is returned when the refresh token is missing or expired
	// and the user must run the authorization flow again.
	ErrReauthorize = errors.New("re-authorization required")
)

// Provider supplies the current bearer token and can renew it.
type Provider interface {
	// Token returns the access token to send with the next request.
	Token(ctx context.Context) (string, error)

	// Refresh renews the access token after the API rejected it.
	Refresh(ctx context.Context) error
}

// TokenRefreshError represents a token refresh failure.
type TokenRefreshError struct {
	StatusCode int
	Cause      error
}

func (e *TokenRefreshError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("token refresh failed (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Cause)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TokenRefreshError) Unwrap() error {
	return e.Cause
}

// Static is a Provider with a fixed token. Refresh only counts calls.
type Static struct {
	AccessToken string

	refreshes atomic.Int64
}

// NewStatic returns a Provider that always hands out token.
func NewStatic(token string) *Static {
	return &Static{AccessToken: token}
}

// Token implements Provider.
func (s *Static) Token(ctx context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrNoTokens
	}
	return s.AccessToken, nil
}

// Refresh implements Provider.
func (s *Static) Refresh(ctx context.Context) error {
	s.refreshes.Add(1)
	return nil
}

// Refreshes returns how many times Refresh was called.
func (s *Static) Refreshes() int64 {
	return s.refreshes.Load()
}
