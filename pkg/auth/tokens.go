package auth

import (
	"time"
)

const (
	// DefaultRefreshBefore is how early an access token is renewed before it expires.
	DefaultRefreshBefore = 5 * time.Minute

	// RefreshTokenLifetime is how long MyCase honours a refresh token after issue.
	RefreshTokenLifetime = 14 * 24 * time.Hour
)

// Tokens is the OAuth2 token set returned by the MyCase token endpoint,
// plus bookkeeping timestamps added when it is stored.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	FirmUUID     string `json:"firm_uuid,omitempty"`

	ExpiresAt time.Time `json:"expires_at,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Stamp sets SavedAt to now and derives ExpiresAt from ExpiresIn.
func (t *Tokens) Stamp(now time.Time) {
	t.SavedAt = now
	if t.ExpiresIn > 0 {
		t.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// AccessTokenExpired reports whether the access token expires within margin.
// A token without a known expiry is treated as expired.
func (t *Tokens) AccessTokenExpired(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-margin))
}

// RefreshTokenValid reports whether the refresh token can still be used.
func (t *Tokens) RefreshTokenValid(now time.Time) bool {
	if t.RefreshToken == "" || t.SavedAt.IsZero() {
		return false
	}
	return now.Before(t.SavedAt.Add(RefreshTokenLifetime))
}
