package github

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/custodia-labs/vulnsync/internal/logger"
)

const (
	// DefaultResetBuffer guards against clock skew with the server.
	DefaultResetBuffer = 5 * time.Second

	// QuotaWarnThreshold is the remaining-request count below which the
	// connectivity check warns.
	QuotaWarnThreshold = 60

	// HeaderRateLimit is the rate limit header.
	HeaderRateLimit = "X-RateLimit-Limit"

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// throttleMarker is the body text that distinguishes throttling from
	// other 403 responses.
	throttleMarker = "rate limit"
)

// IsThrottled reports whether a response signals rate limiting: status 403
// and a body or message mentioning the rate limit.
func IsThrottled(status int, body string) bool {
	return status == http.StatusForbidden && strings.Contains(strings.ToLower(body), throttleMarker)
}

// RateLimiter combines proactive pacing with reactive back-off on
// throttled responses.
//
// The proactive side is a token bucket. The reactive side computes
// wait = max(0, reset - now + buffer) from the X-RateLimit-Reset header and
// sleeps the calling goroutine only, so other workers keep going.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int       // From API header, -1 until seen
	limit     int       // From API header
	resetTime time.Time // From API header

	bucket     *rate.Limiter // Proactive throttling, nil when disabled
	buffer     time.Duration
	clock      clock.Clock
	onThrottle func()
}

// NewRateLimiter creates a rate limiter. A non-positive rps disables
// proactive pacing.
func NewRateLimiter(rps float64, buffer time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	r := &RateLimiter{
		remaining: -1,
		buffer:    buffer,
		clock:     clk,
	}
	if rps > 0 {
		r.bucket = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

// OnThrottle registers a callback invoked for every throttled response.
func (r *RateLimiter) OnThrottle(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onThrottle = fn
}

// Wait blocks until the token bucket admits another request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.bucket == nil {
		return nil
	}
	return r.bucket.Wait(ctx)
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}

	if limit := resp.Header.Get(HeaderRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			r.limit = val
		}
	}

	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// WaitDuration returns how long to back off after a throttled response.
// A missing or unparseable reset header yields zero.
func (r *RateLimiter) WaitDuration(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	reset := resp.Header.Get(HeaderRateReset)
	if reset == "" {
		return 0
	}
	sec, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 0
	}
	wait := time.Unix(sec, 0).Sub(r.clock.Now()) + r.buffer
	if wait < 0 {
		return 0
	}
	return wait
}

// Backoff handles a throttled response. When the computed wait is positive
// it sleeps the calling goroutine and returns true, meaning the caller may
// retry once. Otherwise it returns false and the caller must not retry.
func (r *RateLimiter) Backoff(resp *http.Response) bool {
	r.UpdateFromResponse(resp)

	r.mu.Lock()
	hook := r.onThrottle
	remaining := r.remaining
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	wait := r.WaitDuration(resp)
	if wait <= 0 {
		logger.Warn("rate limited (remaining %d), no reset signalled, not retrying", remaining)
		return false
	}

	logger.Warn("rate limited (remaining %d), sleeping %s before retrying", remaining, wait.Round(time.Second))
	r.clock.Sleep(wait)
	return true
}

// Remaining returns the last seen remaining requests, or -1.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// Limit returns the rate limit.
func (r *RateLimiter) Limit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

// ResetTime returns the rate limit reset time.
func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}

// errorFor builds the error returned once the single retry is spent.
func (r *RateLimiter) errorFor(url string) *RateLimitError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &RateLimitError{
		ResetAt:   r.resetTime,
		Remaining: r.remaining,
		Limit:     r.limit,
		URL:       url,
	}
}
