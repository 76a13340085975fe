// Package http is the shared resty transport for everything vesper
// talks to over the wire: embed page probes, the extraction backend,
// and the library API. The hosts behind those are flaky by nature, so
// transient failures always retry with a short backoff.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout = 30 * time.Second
	retryAttempts  = 3
	retryWaitMin   = 500 * time.Millisecond
	retryWaitMax   = 3 * time.Second

	userAgent = "vesper/1.0"
	// Response bodies are logged at debug level up to this size
	logBodyLimit = 1000
)

// Client wraps a resty.Client with the retry policy and debug logging
// shared by all provider-facing requests
type Client struct {
	resty  *resty.Client
	logger *slog.Logger
}

// ClientConfig configures a Client. Zero values fall back to defaults.
type ClientConfig struct {
	Timeout time.Duration
	Debug   bool
	Logger  *slog.Logger
}

// NewClient creates an HTTP client with the shared retry policy
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(retryAttempts).
		SetRetryWaitTime(retryWaitMin).
		SetRetryMaxWaitTime(retryWaitMax).
		AddRetryCondition(retryable).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json, text/html, */*")

	c := &Client{resty: rc, logger: cfg.Logger}

	if cfg.Debug && cfg.Logger != nil {
		rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			c.logger.Debug("http request", "method", r.Method, "url", r.URL)
			return nil
		})
		rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.logResponse(r)
			return nil
		})
	}

	return c
}

// retryable marks network errors, server errors, and rate limiting as
// worth another attempt. Client errors are final.
func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() >= 500 || r.StatusCode() == 429
}

// Get performs a GET request. Responses with status >= 400 return both
// the response and an error.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx).SetHeaders(headers)

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return checkStatus(resp, url)
}

// Post performs a POST request with a JSON-marshalable body
func (c *Client) Post(ctx context.Context, url string, body interface{}, headers map[string]string) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx).SetHeaders(headers).SetBody(body)

	resp, err := req.Post(url)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", url, err)
	}
	return checkStatus(resp, url)
}

func checkStatus(resp *resty.Response, url string) (*resty.Response, error) {
	if resp.StatusCode() >= 400 {
		return resp, fmt.Errorf("HTTP error %d for %s: %s", resp.StatusCode(), url, resp.String())
	}
	return resp, nil
}

func (c *Client) logResponse(r *resty.Response) {
	body := r.String()
	if len(body) > logBodyLimit {
		body = body[:logBodyLimit] + "... (truncated)"
	}
	c.logger.Debug("http response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"time", r.Time(),
		"body", body,
	)
}
