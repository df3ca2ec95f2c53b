package github

import (
	"fmt"
	"strings"
	"time"
)

// Upstream defaults: CISA's Vulnrichment repository.
const (
	DefaultOwner = "cisagov"
	DefaultRepo  = "vulnrichment"
	DefaultRef   = "develop"
)

// Config holds the settings for the advisory repository connector.
type Config struct {
	// Owner and Repo identify the repository holding per-year directories.
	Owner string
	Repo  string

	// Ref is the branch or tag to list. Empty uses the repository default.
	Ref string

	// Token is an optional personal access token. Anonymous access works
	// but has a much lower rate limit.
	Token string

	// BaseURL overrides the REST API endpoint (GitHub Enterprise, tests).
	BaseURL string

	// RequestsPerSecond paces requests proactively. Zero disables pacing.
	RequestsPerSecond float64

	// ResetBuffer is added to the server-signalled reset time before a
	// throttled request is retried.
	ResetBuffer time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns the configuration for the public upstream.
func DefaultConfig() Config {
	return Config{
		Owner:       DefaultOwner,
		Repo:        DefaultRepo,
		Ref:         DefaultRef,
		ResetBuffer: DefaultResetBuffer,
		Timeout:     DefaultTimeout,
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" || strings.TrimSpace(c.Repo) == "" {
		return fmt.Errorf("%w: owner and repo are required", ErrConfigInvalid)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrConfigInvalid)
	}
	if c.ResetBuffer < 0 {
		return fmt.Errorf("%w: reset_buffer must not be negative", ErrConfigInvalid)
	}
	return nil
}

// RepoURL returns the browsable repository URL, used in log lines.
func (c Config) RepoURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", c.Owner, c.Repo)
}
