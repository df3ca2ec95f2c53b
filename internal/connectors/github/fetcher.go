package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxDocumentSize bounds a single advisory download.
const maxDocumentSize = 32 << 20

// Fetch downloads the document at location over the shared session.
// A throttled response is retried once after backing off.
func (c *Client) Fetch(ctx context.Context, location string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		body, resp, err := c.get(ctx, location)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if IsThrottled(resp.StatusCode, string(body)) {
			if attempt == 0 && c.limiter.Backoff(resp) {
				continue
			}
			return nil, c.limiter.errorFor(location)
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			URL:        location,
		}
	}
}

func (c *Client) get(ctx context.Context, location string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", location, err)
	}
	c.limiter.UpdateFromResponse(resp)
	return body, resp, nil
}
