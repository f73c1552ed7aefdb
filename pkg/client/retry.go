package client

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mycase_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycase_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy bounds the three independent retry budgets of a logical request.
// The counters never share a budget.
type RetryPolicy struct {
	// MaxRetries is the number of attempts allowed for transient failures
	// (5xx, 408, transport errors). The request fails once this many attempts failed.
	MaxRetries int

	// MaxThrottleRetries is how many 429 responses are waited out before failing.
	MaxThrottleRetries int

	// MaxAuthRetries is how many 401 responses trigger a token refresh before failing.
	MaxAuthRetries int

	// BackoffBase is the unit of exponential backoff: BackoffBase * 2^n.
	BackoffBase time.Duration

	// MaxBackoff caps the exponential part of any backoff. A server-supplied
	// Retry-After is honoured even when larger.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:         3,
		MaxThrottleRetries: 10,
		MaxAuthRetries:     3,
		BackoffBase:        1 * time.Second,
		MaxBackoff:         5 * time.Minute,
	}
}

// withDefaults fills zero or negative fields from DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.MaxThrottleRetries <= 0 {
		p.MaxThrottleRetries = def.MaxThrottleRetries
	}
	if p.MaxAuthRetries <= 0 {
		p.MaxAuthRetries = def.MaxAuthRetries
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	return p
}

// exponential returns BackoffBase * 2^n capped at MaxBackoff.
func (p RetryPolicy) exponential(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(p.BackoffBase) * math.Pow(2, float64(n))
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// RetryBackoff is the wait after the generic failure with 0-based index attempt.
func (p RetryPolicy) RetryBackoff(attempt int) time.Duration {
	return p.exponential(attempt)
}

// ThrottleBackoff is the wait after the throttleCount-th 429 (1-based):
// the larger of the server's Retry-After and BackoffBase * 2^throttleCount.
func (p RetryPolicy) ThrottleBackoff(throttleCount int, retryAfter time.Duration) time.Duration {
	backoff := p.exponential(throttleCount)
	if retryAfter > backoff {
		return retryAfter
	}
	return backoff
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// Missing or malformed values yield 0.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
