package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var authRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mycase_auth_refresh_total",
	Help: "Total access token refreshes by result",
}, []string{"result"})

// DefaultAuthURL is the MyCase OAuth2 server.
const DefaultAuthURL = "https://auth.mycase.com"

// DefaultScopes are the read scopes requested by AuthorizationURL.
var DefaultScopes = []string{
	"read_cases",
	"read_contacts",
	"read_invoices",
	"read_events",
	"read_tasks",
	"read_staff",
	"read_time_entries",
	"read_expenses",
	"read_payments",
	"read_documents",
	"read_notes",
	"read_messages",
	"read_leads",
	"read_custom_fields",
	"read_call_log",
	"read_webhooks",
}

// OAuth2Config holds the OAuth2 client registration.
type OAuth2Config struct {
	// AuthURL is the authorization server base, e.g. https://auth.mycase.com
	AuthURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// RefreshBefore renews the access token this long before it expires.
	RefreshBefore time.Duration

	// HTTPClient is used for token requests (default: 30s timeout).
	HTTPClient *http.Client
}

// OAuth2Provider hands out MyCase access tokens from a Store and renews them
// with the refresh-token grant.
type OAuth2Provider struct {
	cfg    OAuth2Config
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens *Tokens
}

// NewOAuth2Provider creates a provider backed by store.
func NewOAuth2Provider(cfg OAuth2Config, store Store, logger zerolog.Logger) (*OAuth2Provider, error) {
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("auth URL is required for OAuth2")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required for OAuth2")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required for OAuth2")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if cfg.RefreshBefore <= 0 {
		cfg.RefreshBefore = DefaultRefreshBefore
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")

	return &OAuth2Provider{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Token implements Provider. An access token close to expiry is renewed
// before it is handed out.
func (p *OAuth2Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens == nil || p.tokens.AccessTokenExpired(p.now(), p.cfg.RefreshBefore) {
		// Another process sharing the store may already have refreshed.
		if err := p.loadLocked(ctx); err != nil {
			return "", err
		}
	}

	if p.tokens.AccessTokenExpired(p.now(), p.cfg.RefreshBefore) {
		if !p.tokens.RefreshTokenValid(p.now()) {
			return "", fmt.Errorf("%w: tokens expired", ErrReauthorize)
		}
		if err := p.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	return p.tokens.AccessToken, nil
}

// Refresh implements Provider.
func (p *OAuth2Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens == nil {
		if err := p.loadLocked(ctx); err != nil {
			return err
		}
	}
	return p.refreshLocked(ctx)
}

// Exchange trades an authorization code for a token set and stores it.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)

	p.mu.Lock()
	defer p.mu.Unlock()

	tokens, err := p.requestTokens(ctx, form)
	if err != nil {
		return nil, err
	}
	if err := p.saveLocked(ctx, tokens); err != nil {
		return nil, err
	}

	p.logger.Info().Str("firm_uuid", tokens.FirmUUID).Msg("Authorization code exchanged")
	return tokens, nil
}

// AuthorizationURL returns the consent page URL. Nil scopes request DefaultScopes.
func (p *OAuth2Provider) AuthorizationURL(scopes []string) string {
	if scopes == nil {
		scopes = DefaultScopes
	}

	params := url.Values{}
	params.Set("client_id", p.cfg.ClientID)
	params.Set("redirect_uri", p.cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(scopes, " "))

	return p.cfg.AuthURL + "/login_sessions/new?" + params.Encode()
}

// Tokens returns a copy of the token set currently held, loading it if needed.
func (p *OAuth2Provider) Tokens(ctx context.Context) (*Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens == nil {
		if err := p.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	tokens := *p.tokens
	return &tokens, nil
}

// SetClock replaces the time source (for testing).
func (p *OAuth2Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *OAuth2Provider) loadLocked(ctx context.Context) error {
	tokens, err := p.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoTokens) {
			return fmt.Errorf("%w: %w", ErrReauthorize, err)
		}
		return fmt.Errorf("load tokens: %w", err)
	}
	p.tokens = tokens
	return nil
}

func (p *OAuth2Provider) refreshLocked(ctx context.Context) error {
	if p.tokens.RefreshToken == "" {
		authRefreshTotal.WithLabelValues("no_refresh_token").Inc()
		return &TokenRefreshError{Cause: fmt.Errorf("%w: no refresh token", ErrReauthorize)}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", p.tokens.RefreshToken)

	tokens, err := p.requestTokens(ctx, form)
	if err != nil {
		authRefreshTotal.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Msg("Access token refresh failed")
		return err
	}

	// MyCase may omit the refresh token when it is not rotated.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = p.tokens.RefreshToken
	}
	if tokens.FirmUUID == "" {
		tokens.FirmUUID = p.tokens.FirmUUID
	}

	if err := p.saveLocked(ctx, tokens); err != nil {
		authRefreshTotal.WithLabelValues("error").Inc()
		return err
	}

	authRefreshTotal.WithLabelValues("success").Inc()
	p.logger.Info().Time("expires_at", tokens.ExpiresAt).Msg("Access token refreshed")
	return nil
}

func (p *OAuth2Provider) saveLocked(ctx context.Context, tokens *Tokens) error {
	tokens.Stamp(p.now())
	if err := p.store.Save(ctx, tokens); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	p.tokens = tokens
	return nil
}

// requestTokens posts a grant to the token endpoint.
func (p *OAuth2Provider) requestTokens(ctx context.Context, form url.Values) (*Tokens, error) {
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AuthURL+"/tokens", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenRefreshError{Cause: fmt.Errorf("create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &TokenRefreshError{Cause: fmt.Errorf("token request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenRefreshError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("read token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		cause := fmt.Errorf("token endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			// invalid_grant and friends: the refresh token is no longer usable.
			cause = fmt.Errorf("%w: %w", ErrReauthorize, cause)
		}
		return nil, &TokenRefreshError{StatusCode: resp.StatusCode, Cause: cause}
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, &TokenRefreshError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode token response: %w", err)}
	}
	if tokens.AccessToken == "" {
		return nil, &TokenRefreshError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("token response has no access_token")}
	}
	return &tokens, nil
}
