// Package ratelimit implements the client-side token bucket that keeps outbound
// MyCase API calls under the server's per-second request budget.
// Callers are never rejected: Acquire blocks until a slot is available.
package ratelimit

import (
	"math"
	"time"
)

// DefaultRequestsPerSecond is the MyCase API request budget.
const DefaultRequestsPerSecond = 25

// State is a point-in-time snapshot of a bucket.
type State struct {
	// Capacity is the maximum number of tokens, equal to the refill rate per second.
	Capacity float64 `json:"capacity"`

	// Tokens is the number of tokens currently available.
	// Always within [0, Capacity].
	Tokens float64 `json:"tokens"`

	// LastRefill is the instant tokens were last replenished.
	LastRefill time.Time `json:"last_refill"`
}

// refill adds tokens for the time elapsed since LastRefill, capped at Capacity.
func (s *State) refill(now time.Time) {
	elapsed := now.Sub(s.LastRefill).Seconds()
	if elapsed > 0 {
		s.Tokens += elapsed * s.Capacity
		if s.Tokens > s.Capacity {
			s.Tokens = s.Capacity
		}
	}
	s.LastRefill = now
}

// WaitFor returns how long a caller must wait before one token is available.
// Returns 0 if a token can be spent immediately. Any shortfall, however
// small, yields at least one nanosecond.
func (s *State) WaitFor() time.Duration {
	if s.Tokens >= 1 || s.Capacity <= 0 {
		return 0
	}
	nanos := math.Ceil((1 - s.Tokens) / s.Capacity * float64(time.Second))
	return max(time.Duration(nanos), time.Nanosecond)
}

// IsFull reports whether the bucket has no headroom left to refill.
func (s *State) IsFull() bool {
	return s.Tokens >= s.Capacity
}
