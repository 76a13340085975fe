// Package library talks to the metadata/library backend: item, season, and
// episode descriptors, watch-progress persistence, and the watchlist. The
// playback engine treats it as an opaque data source.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	providerhttp "github.com/vesperhq/vesper/internal/providers/http"
)

// Client handles communication with the library API server
type Client struct {
	baseURL    string
	httpClient *providerhttp.Client
	logger     *slog.Logger
}

// ClientConfig holds configuration for the library client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Debug   bool
	Logger  *slog.Logger
}

// NewClient creates a new library API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
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
		logger:     cfg.Logger,
	}
}

// Search queries the library for items matching the query
func (c *Client) Search(ctx context.Context, query string) ([]Item, error) {
	var response SearchResponse
	err := c.get(ctx, "/api/items/search", map[string]string{"query": query}, &response)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return response.Results, nil
}

// GetItem retrieves a single item descriptor
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := c.get(ctx, "/api/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}
	return &item, nil
}

// GetSeasons retrieves the season/episode layout of a series. The session
// needs this to clamp episode navigation at season boundaries.
func (c *Client) GetSeasons(ctx context.Context, id string) ([]Season, error) {
	var response seasonsResponse
	if err := c.get(ctx, "/api/items/"+url.PathEscape(id)+"/seasons", nil, &response); err != nil {
		return nil, fmt.Errorf("get seasons failed: %w", err)
	}
	return response.Seasons, nil
}

// GetProgress retrieves the stored watch position for a content id.
// A missing record is not an error; ok is false.
func (c *Client) GetProgress(ctx context.Context, contentID string) (*Progress, bool, error) {
	var progress Progress
	err := c.get(ctx, "/api/progress/"+url.PathEscape(contentID), nil, &progress)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get progress failed: %w", err)
	}
	return &progress, true, nil
}

// SaveProgress persists a watch position
func (c *Client) SaveProgress(ctx context.Context, progress Progress) error {
	resp, err := c.httpClient.Post(ctx, c.baseURL+"/api/progress", progress, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		if resp != nil {
			err = apiError(resp.Body(), err)
		}
		return fmt.Errorf("save progress failed: %w", err)
	}
	return nil
}

// GetWatchlist retrieves the user's watchlist
func (c *Client) GetWatchlist(ctx context.Context) ([]Item, error) {
	var response watchlistResponse
	if err := c.get(ctx, "/api/watchlist", nil, &response); err != nil {
		return nil, fmt.Errorf("get watchlist failed: %w", err)
	}
	return response.Items, nil
}

// AddToWatchlist adds an item to the watchlist
func (c *Client) AddToWatchlist(ctx context.Context, itemID string) error {
	body := map[string]string{"id": itemID}
	resp, err := c.httpClient.Post(ctx, c.baseURL+"/api/watchlist", body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		if resp != nil {
			err = apiError(resp.Body(), err)
		}
		return fmt.Errorf("add to watchlist failed: %w", err)
	}
	return nil
}

// get performs a GET request against the API
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		q := u.Query()
		for key, value := range params {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	resp, err := c.httpClient.Get(ctx, fullURL, nil)
	if err != nil {
		if resp != nil {
			return apiError(resp.Body(), err)
		}
		return fmt.Errorf("HTTP request failed (is the library API running at %s?): %w", c.baseURL, err)
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// apiError prefers the backend's JSON error envelope over the raw
// transport error
func apiError(body []byte, fallback error) error {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("API error: %s", envelope.Error)
	}
	return fallback
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}
