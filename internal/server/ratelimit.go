package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces a per-client request rate and a daily generation quota.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	generationsPerDay int

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks usage for a single client address.
type ClientUsage struct {
	RequestsThisMinute int
	GenerationsToday   int

	windowStart time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter. A zero limit disables that check.
func NewRateLimiter(requestsPerMinute, generationsPerDay int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		generationsPerDay: generationsPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRequest counts a request against the per-minute window.
func (rl *RateLimiter) CheckRequest(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(clientID, now)

	if now.Sub(usage.windowStart) >= time.Minute {
		usage.RequestsThisMinute = 0
		usage.windowStart = now
	}
	if rl.requestsPerMinute > 0 && usage.RequestsThisMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.windowStart),
		}
	}
	usage.RequestsThisMinute++
	return nil
}

// CheckGeneration counts one generation against the daily quota.
func (rl *RateLimiter) CheckGeneration(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(clientID, now)

	y1, m1, d1 := now.Date()
	y2, m2, d2 := usage.dayStart.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		usage.GenerationsToday = 0
		usage.dayStart = now
	}
	if rl.generationsPerDay > 0 && usage.GenerationsToday >= rl.generationsPerDay {
		return &QuotaExceededError{
			Type:   "generations",
			Limit:  int64(rl.generationsPerDay),
			Used:   int64(usage.GenerationsToday),
			Resets: time.Date(y1, m1, d1+1, 0, 0, 0, 0, now.Location()),
		}
	}
	usage.GenerationsToday++
	return nil
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *ClientUsage {
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &ClientUsage{windowStart: now, dayStart: now}
		rl.clients[clientID] = usage
	}
	return usage
}

// GetUsage returns a copy of the usage counters for a client.
func (rl *RateLimiter) GetUsage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[clientID]; ok {
		return *usage
	}
	return ClientUsage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "generations"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
