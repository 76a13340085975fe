package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	providerhttp "github.com/vesperhq/vesper/internal/providers/http"
)

// EmbedProvider serves content through a third-party page rendered whole.
// URL construction is pure and cannot fail; a broken page only surfaces
// later through the playback controller.
type EmbedProvider struct {
	id                 string
	displayName        string
	baseURL            string
	languages          []string
	supportsTimeOffset bool

	httpClient *providerhttp.Client
}

// EmbedConfig describes an embed provider entry
type EmbedConfig struct {
	ID                 string
	DisplayName        string
	BaseURL            string
	Languages          []string
	SupportsTimeOffset bool
	HTTPClient         *providerhttp.Client
}

// NewEmbedProvider creates an embed-style provider
func NewEmbedProvider(cfg EmbedConfig) *EmbedProvider {
	return &EmbedProvider{
		id:                 cfg.ID,
		displayName:        cfg.DisplayName,
		baseURL:            cfg.BaseURL,
		languages:          cfg.Languages,
		supportsTimeOffset: cfg.SupportsTimeOffset,
		httpClient:         cfg.HTTPClient,
	}
}

// ID returns the provider id
func (p *EmbedProvider) ID() string { return p.id }

// DisplayName returns the human-readable provider name
func (p *EmbedProvider) DisplayName() string { return p.displayName }

// Capabilities returns the provider's static capability flags
func (p *EmbedProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsLanguage:   len(p.languages) > 0,
		SupportsTimeOffset: p.supportsTimeOffset,
		IsExtractionBased:  false,
	}
}

// Languages returns the language codes this provider can serve
func (p *EmbedProvider) Languages() []string {
	out := make([]string, len(p.languages))
	copy(out, p.languages)
	return out
}

// Resolve builds the embed page URL for the request
func (p *EmbedProvider) Resolve(_ context.Context, req PlaybackRequest) (*ResolvedStream, error) {
	var path string
	switch req.MediaType {
	case MediaTypeSeries:
		path = fmt.Sprintf("/embed/tv/%s/%d/%d", url.PathEscape(req.ExternalID), req.Season, req.Episode)
	default:
		path = fmt.Sprintf("/embed/movie/%s", url.PathEscape(req.ExternalID))
	}

	params := url.Values{}
	if req.Language != "" && SupportsLanguageCode(p, req.Language) {
		params.Set("lang", req.Language)
	}
	if req.TimeOffset > 0 && p.supportsTimeOffset {
		params.Set("t", strconv.Itoa(int(req.TimeOffset.Seconds())))
	}

	embedURL := p.baseURL + path
	if len(params) > 0 {
		embedURL = embedURL + "?" + params.Encode()
	}

	return &ResolvedStream{
		URL:        embedURL,
		Kind:       StreamKindEmbed,
		ProviderID: p.id,
	}, nil
}

// HealthCheck fetches the provider's landing page and looks for a player
// mount point. A page that loads but carries no player is as dead as one
// that does not load at all.
func (p *EmbedProvider) HealthCheck(ctx context.Context) error {
	if p.httpClient == nil {
		return fmt.Errorf("no HTTP client configured for %s", p.id)
	}

	resp, err := p.httpClient.Get(ctx, p.baseURL, nil)
	if err != nil {
		return fmt.Errorf("embed page unreachable: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return fmt.Errorf("failed to parse embed page: %w", err)
	}

	if doc.Find("iframe, video, #player, [data-player]").Length() == 0 {
		return fmt.Errorf("embed page has no player mount point")
	}

	return nil
}
