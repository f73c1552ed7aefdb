// Package client provides the core MyCase HTTP client with rate limiting,
// token refresh, and retry handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/auth"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_requests_total",
		Help: "Total MyCase requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mycase_request_duration_seconds",
		Help:    "MyCase logical request duration in seconds by endpoint, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_errors_total",
		Help: "Total MyCase errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the MyCase external integrations API.
const DefaultBaseURL = "https://external-integrations.mycase.com/v1"

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 401, 408 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors and 408 timeouts.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassAuth represents 401 rejections and credential failures.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the MyCase API client. It is safe to share, but requests through
// one Client are meant to be issued one at a time.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	auth        auth.Provider
	rateLimiter *ratelimit.Bucket
	config      Config
	sleep       ratelimit.SleepFunc
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// RateLimit is the client-side request budget per second.
	RateLimit int

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry bounds the generic, throttle and auth retry budgets.
	Retry RetryPolicy
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "mycase-client/0.1.0",
		RateLimit: ratelimit.DefaultRequestsPerSecond,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// New creates a new MyCase client that authenticates through provider.
func New(cfg Config, provider auth.Provider) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("auth provider is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.RateLimit < 1 {
		return nil, fmt.Errorf("rate_limit must be >= 1 (got %d)", cfg.RateLimit)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Retry = cfg.Retry.withDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		auth:        provider,
		rateLimiter: ratelimit.NewBucket(cfg.RateLimit, logging.NewLogger(logging.ComponentRateLimit)),
		config:      cfg,
		sleep:       ratelimit.Sleep,
		logger:      logger,
	}, nil
}

// Do performs one logical request: it waits for the rate limiter, attaches
// credentials, and retries according to the response class until it either
// succeeds or a budget runs out.
//
// The rate limiter is consulted before every physical attempt, retries included.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	endpoint := req.Path
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	requestID := uuid.NewString()
	logger := c.logger.With().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Logger()

	policy := c.config.Retry
	var attempts, failures, throttles, authRetries int

	fail := func(class ErrorClass, status int, errBody []byte, cause error) error {
		errorsTotal.WithLabelValues(string(class)).Inc()
		return &APIError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: status,
			ErrorClass: class,
			Attempts:   attempts,
			Body:       parseErrorBody(errBody),
			Err:        cause,
		}
	}

	wait := func(class ErrorClass, d time.Duration) error {
		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(d.Seconds())
		if err := c.sleep(ctx, d); err != nil {
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempts).
				Msg("Context cancelled during retry backoff")
			return fail(class, 0, nil, fmt.Errorf("%w: %w", ErrContextCancelled, err))
		}
		return nil
	}

	for {
		if err := c.rateLimiter.Acquire(ctx); err != nil {
			return nil, fail(ErrorClassNetwork, 0, nil, fmt.Errorf("%w: %w", ErrContextCancelled, err))
		}

		token, err := c.auth.Token(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("No usable access token")
			return nil, fail(ErrorClassAuth, 0, nil, err)
		}

		attempts++
		logger.Debug().Int("attempt", attempts).Msg("Executing MyCase request")

		resp, err := c.send(ctx, req, body, token, requestID)

		// Transport failure: retry with generic backoff.
		if err != nil {
			if ctx.Err() != nil {
				return nil, fail(ErrorClassNetwork, 0, nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()))
			}

			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			failures++
			if failures >= policy.MaxRetries {
				retryExhaustedTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				logger.Error().Err(err).Int("attempts", attempts).Msg("Request failed, retry attempts exhausted")
				return nil, fail(ErrorClassNetwork, 0, nil, fmt.Errorf("%w: %w", ErrRetryExhausted, err))
			}

			backoff := policy.RetryBackoff(failures - 1)
			logger.Warn().
				Err(err).
				Str("error_class", string(ErrorClassNetwork)).
				Int("attempt", attempts).
				Dur("backoff", backoff).
				Msg("HTTP request failed, retrying after backoff")
			if err := wait(ErrorClassNetwork, backoff); err != nil {
				return nil, err
			}
			continue
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		errorClass := classifyStatus(resp.StatusCode)

		switch {
		case errorClass == "":
			if attempts > 1 {
				logger.Info().Int("attempts", attempts).Msg("Request succeeded after retry")
			}
			return resp, nil

		case errorClass == ErrorClassAuth:
			authRetries++
			if authRetries > policy.MaxAuthRetries {
				retryExhaustedTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
				logger.Error().Int("auth_retries", authRetries-1).Msg("Access token still rejected after refresh")
				return nil, fail(ErrorClassAuth, resp.StatusCode, resp.Body,
					fmt.Errorf("%w after %d refreshes", ErrAuthRetriesExhausted, authRetries-1))
			}

			logger.Warn().Int("attempt", attempts).Msg("Access token rejected, refreshing")
			retriesTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
			if err := c.auth.Refresh(ctx); err != nil {
				return nil, fail(ErrorClassAuth, resp.StatusCode, resp.Body, err)
			}

		case errorClass == ErrorClassRateLimit:
			throttles++
			if throttles > policy.MaxThrottleRetries {
				retryExhaustedTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
				logger.Error().Int("throttled", throttles).Msg("Rate limited too many times")
				return nil, fail(ErrorClassRateLimit, resp.StatusCode, resp.Body,
					fmt.Errorf("%w %d times", ErrRateLimited, throttles))
			}

			retryAfter := parseRetryAfter(resp.Header, time.Now())
			backoff := policy.ThrottleBackoff(throttles, retryAfter)
			logger.Warn().
				Int("throttle_count", throttles).
				Int("max_throttle_retries", policy.MaxThrottleRetries).
				Dur("retry_after", retryAfter).
				Dur("backoff", backoff).
				Msg("Rate limited by server, waiting")
			if err := wait(ErrorClassRateLimit, backoff); err != nil {
				return nil, err
			}

		case shouldRetry(errorClass):
			failures++
			if failures >= policy.MaxRetries {
				retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
				logger.Error().
					Int("status", resp.StatusCode).
					Int("attempts", attempts).
					Msg("Request failed, retry attempts exhausted")
				return nil, fail(errorClass, resp.StatusCode, resp.Body, ErrRetryExhausted)
			}

			backoff := policy.RetryBackoff(failures - 1)
			logger.Warn().
				Int("status", resp.StatusCode).
				Str("error_class", string(errorClass)).
				Int("attempt", attempts).
				Dur("backoff", backoff).
				Msg("MyCase request error, retrying after backoff")
			if err := wait(errorClass, backoff); err != nil {
				return nil, err
			}

		default:
			logger.Warn().
				Int("status", resp.StatusCode).
				Str("error_class", string(errorClass)).
				Msg("MyCase request rejected")
			return nil, fail(errorClass, resp.StatusCode, resp.Body, nil)
		}
	}
}

// send performs one physical HTTP attempt and reads the whole body.
func (c *Client) send(ctx context.Context, req *Request, body []byte, token, requestID string) (*Response, error) {
	target := c.baseURL + req.Path
	if q := req.Params.Encode(); q != "" {
		target += "?" + q
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// classifyStatus maps a status code to an error class; "" means success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusRequestTimeout:
		return ErrorClassServer
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, params *Params) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Params: params})
}

// GetJSON performs a GET request and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params *Params, out any) error {
	resp, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// RateLimiter returns the client's request bucket.
func (c *Client) RateLimiter() *ratelimit.Bucket {
	return c.rateLimiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleepFunc replaces the backoff wait (for testing).
func (c *Client) SetSleepFunc(fn ratelimit.SleepFunc) {
	c.sleep = fn
}

// IsAuthError reports whether err is a credential failure the user must fix
// by re-authorizing.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassAuth {
		return true
	}
	return errors.Is(err, auth.ErrReauthorize)
}
