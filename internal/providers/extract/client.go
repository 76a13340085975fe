// Package extract talks to the torrent-debrid extraction backend. A lookup
// either yields a directly playable URL, a manifest URL for the adaptive
// path, or a structured failure the resolver uses to advance to the next
// candidate provider.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	providerhttp "github.com/vesperhq/vesper/internal/providers/http"
)

// Client handles communication with the extraction API server
type Client struct {
	baseURL    string
	httpClient *providerhttp.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientConfig holds configuration for the extraction client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Debug   bool
	Logger  *slog.Logger
}

// NewClient creates a new extraction API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := providerhttp.NewClient(providerhttp.ClientConfig{
		Timeout: cfg.Timeout,
		Debug:   cfg.Debug,
		Logger:  cfg.Logger,
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// Extract resolves a content id into a playable URL. The call is bounded by
// the configured timeout; a timeout is reported like any other network
// failure so the caller's fallback policy applies uniformly.
func (c *Client) Extract(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/extract/%s/%s", c.baseURL, req.MediaType, url.PathEscape(req.ExternalID))

	params := url.Values{}
	if req.Season > 0 {
		params.Set("season", strconv.Itoa(req.Season))
	}
	if req.Episode > 0 {
		params.Set("episode", strconv.Itoa(req.Episode))
	}
	if req.QualityHint != "" {
		params.Set("quality", req.QualityHint)
	}
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(ctx, endpoint, nil)
	if err != nil {
		// Try to surface the backend's structured error before falling
		// back to the transport error
		if resp != nil && len(resp.Body()) > 0 {
			var envelope errorEnvelope
			if jsonErr := json.Unmarshal(resp.Body(), &envelope); jsonErr == nil && envelope.Error != nil {
				return nil, envelope.Error
			}
		}
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	var result Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	if result.StreamURL == "" {
		return nil, &ErrorDetail{Code: "empty_response", Message: "backend returned no stream URL"}
	}
	if result.Kind != KindDirect && result.Kind != KindManifest {
		return nil, &ErrorDetail{Code: "unknown_kind", Message: fmt.Sprintf("unsupported stream kind %q", result.Kind)}
	}

	if result.SizeLabel == "" && result.SizeBytes > 0 {
		result.SizeLabel = humanize.Bytes(uint64(result.SizeBytes))
	}

	c.logger.Debug("extraction succeeded",
		"id", req.ExternalID,
		"kind", result.Kind,
		"quality", result.QualityLabel,
		"size", result.SizeLabel,
	)

	return &result, nil
}

// HealthCheck pings the extraction backend
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.httpClient.Get(ctx, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}

	var status struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}
	if !status.Healthy {
		if status.Message != "" {
			return fmt.Errorf("extraction backend unhealthy: %s", status.Message)
		}
		return fmt.Errorf("extraction backend unhealthy")
	}
	return nil
}
