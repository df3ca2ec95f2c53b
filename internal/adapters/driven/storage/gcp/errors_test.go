package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorised", &googleapi.Error{Code: http.StatusUnauthorized}, ErrUnauthorized},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, ErrForbidden},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, domain.ErrNotFound},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, domain.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, WrapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, WrapError(nil))
	plain := errors.New("boom")
	assert.Equal(t, plain, WrapError(plain))
	server := &googleapi.Error{Code: http.StatusInternalServerError}
	assert.Equal(t, error(server), WrapError(server))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", &googleapi.Error{Code: http.StatusNotFound})))
	assert.True(t, IsNotFound(domain.ErrNotFound))
	assert.False(t, IsNotFound(&googleapi.Error{Code: http.StatusForbidden}))

	assert.True(t, IsConflict(&googleapi.Error{Code: http.StatusConflict}))
	assert.False(t, IsConflict(domain.ErrNotFound))

	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, IsRateLimited(domain.ErrRateLimited))
	assert.False(t, IsRateLimited(errors.New("other")))
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 10})
	require.NoError(t, r.Wait(context.Background()))

	r.observe(errors.New("not a rate limit"))
	assert.True(t, r.retryAt.IsZero())

	r.observe(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.WithinDuration(t, time.Now().Add(30*time.Second), r.retryAt, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestNewRateLimiter_UnknownService(t *testing.T) {
	r := NewRateLimiter(ServiceType("pubsub"))
	assert.NotNil(t, r.limiter)
	assert.InDelta(t, 5.0, float64(r.limiter.Limit()), 0.001)
}
