package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the request bucket.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mycase_rate_limit_waits_total",
		Help: "Total number of requests that had to wait for a rate limit token",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mycase_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: []float64{0.005, 0.01, 0.02, 0.04, 0.1, 0.5, 1},
	})

	rateLimitTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mycase_rate_limit_tokens",
		Help: "Tokens left in the request bucket after the last acquire",
	})
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Bucket is a token bucket that smooths outbound requests to at most
// Capacity per second. Each client owns its own Bucket.
type Bucket struct {
	mu     sync.Mutex
	state  State
	now    func() time.Time
	sleep  SleepFunc
	logger zerolog.Logger
}

// NewBucket creates a full bucket that grants perSecond requests per second.
// Values below 1 fall back to DefaultRequestsPerSecond.
func NewBucket(perSecond int, logger zerolog.Logger) *Bucket {
	if perSecond < 1 {
		perSecond = DefaultRequestsPerSecond
	}

	b := &Bucket{
		now:    time.Now,
		sleep:  Sleep,
		logger: logger,
	}
	b.state = State{
		Capacity:   float64(perSecond),
		Tokens:     float64(perSecond),
		LastRefill: b.now(),
	}
	return b
}

// Acquire blocks until the caller may issue one request.
// The only error is ctx expiring while waiting for a token.
//
// The lock is held across the wait so concurrent callers queue behind each
// other instead of interleaving the refill and spend steps.
func (b *Bucket) Acquire(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.refill(b.now())

	if b.state.Tokens >= 1 {
		b.state.Tokens--
		rateLimitTokens.Set(b.state.Tokens)
		return nil
	}

	wait := b.state.WaitFor()
	rateLimitWaitsTotal.Inc()
	rateLimitWaitSeconds.Observe(wait.Seconds())
	b.logger.Debug().
		Float64("tokens", b.state.Tokens).
		Dur("wait", wait).
		Msg("Rate limit bucket empty, waiting for token")

	if err := b.sleep(ctx, wait); err != nil {
		return err
	}

	// The partial token plus the time slept make up the granted token.
	b.state.Tokens = 0
	b.state.LastRefill = b.now()
	rateLimitTokens.Set(0)
	return nil
}

// State returns a snapshot of the bucket.
func (b *Bucket) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetClock replaces the time source (for testing).
func (b *Bucket) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.state.LastRefill = now()
}

// SetSleepFunc replaces the wait implementation (for testing).
func (b *Bucket) SetSleepFunc(fn SleepFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sleep = fn
}

// Sleep waits for d, returning ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
