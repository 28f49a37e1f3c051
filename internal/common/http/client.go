// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// DoWithRetry retries transport errors and 5xx responses with exponential
// backoff (100ms, 200ms, 400ms...). The request body is buffered so it can be
// replayed on each attempt. Context cancellation stops the loop.
func (c *Client) DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.DoWithContext(ctx, req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			// deadline errors are not retried; the caller maps them to its
			// own timeout sentinel
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			lastErr = err
		} else {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			resp.Body.Close()
		}
	}

	return nil, lastErr
}

// StatusError reports a non-success HTTP status from a retried request.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "http request failed with status " + e.Status
}
