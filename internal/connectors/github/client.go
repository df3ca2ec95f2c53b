package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Ensure Client implements the interface.
var _ driven.AdvisorySource = (*Client)(nil)

// Client lists and fetches advisory documents from a GitHub repository.
// Listing goes through the contents API; documents are downloaded from
// their raw URLs over the same HTTP session.
type Client struct {
	cfg     Config
	gh      *gh.Client
	http    *http.Client
	limiter *RateLimiter
}

type options struct {
	httpClient *http.Client
	clock      clock.Clock
	onThrottle func()
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the base HTTP client. Authentication, when configured,
// wraps its transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClock sets the clock used for rate-limit back-off.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithThrottleHook registers a callback run for every throttled response.
func WithThrottleHook(fn func()) Option {
	return func(o *options) {
		o.onThrottle = fn
	}
}

// NewClient creates a client for the configured repository.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(o)
	}

	base := o.httpClient
	if base == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		base = &http.Client{Timeout: timeout}
	}

	httpClient := base
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
		httpClient.Timeout = base.Timeout
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: base url: %v", ErrConfigInvalid, err)
		}
		client.BaseURL = u
	}

	limiter := NewRateLimiter(cfg.RequestsPerSecond, cfg.ResetBuffer, o.clock)
	if o.onThrottle != nil {
		limiter.OnThrottle(o.onThrottle)
	}

	return &Client{
		cfg:     cfg,
		gh:      client,
		http:    httpClient,
		limiter: limiter,
	}, nil
}

// Validate checks the repository is reachable and logs the remaining
// request quota, warning when it is low.
func (c *Client) Validate(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, resp, err := c.gh.Repositories.Get(ctx, c.cfg.Owner, c.cfg.Repo)
	if err != nil {
		return c.wrapError(err, "get repository")
	}
	c.updateRateLimitFromResponse(resp)

	remaining := resp.Rate.Remaining
	logger.Info("Connected to %s (%d requests remaining)", c.cfg.RepoURL(), remaining)
	if remaining < QuotaWarnThreshold {
		logger.Warn("only %d GitHub API requests remaining until %s", remaining, resp.Rate.Reset.Format(time.RFC3339))
	}
	return nil
}

// RateLimiter returns the client's rate limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.limiter.UpdateFromResponse(resp.Response)
}

// throttledResponse reports whether err is a throttling failure, returning
// the HTTP response that carried it.
func throttledResponse(err error) (*http.Response, bool) {
	var (
		resp    *http.Response
		message string
	)

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var ghErr *gh.ErrorResponse
	switch {
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	case errors.As(err, &ghErr):
		resp, message = ghErr.Response, ghErr.Message
	default:
		return nil, false
	}

	if resp == nil {
		return nil, false
	}
	return resp, IsThrottled(resp.StatusCode, message)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if resp, ok := throttledResponse(err); ok {
		return c.limiter.errorFor(requestURL(resp))
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
			URL:        requestURL(ghErr.Response),
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

func requestURL(resp *http.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
