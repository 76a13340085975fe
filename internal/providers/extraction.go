package providers

import (
	"context"
	"fmt"

	"github.com/vesperhq/vesper/internal/providers/extract"
)

// ExtractionProvider resolves content through the torrent-debrid
// extraction backend. Resolution is asynchronous and can fail with a
// recoverable per-provider error.
type ExtractionProvider struct {
	id          string
	displayName string
	languages   []string
	qualityHint string
	client      *extract.Client
}

// ExtractionConfig describes an extraction provider entry
type ExtractionConfig struct {
	ID          string
	DisplayName string
	Languages   []string
	QualityHint string
	Client      *extract.Client
}

// NewExtractionProvider creates an extraction-based provider
func NewExtractionProvider(cfg ExtractionConfig) *ExtractionProvider {
	return &ExtractionProvider{
		id:          cfg.ID,
		displayName: cfg.DisplayName,
		languages:   cfg.Languages,
		qualityHint: cfg.QualityHint,
		client:      cfg.Client,
	}
}

// ID returns the provider id
func (p *ExtractionProvider) ID() string { return p.id }

// DisplayName returns the human-readable provider name
func (p *ExtractionProvider) DisplayName() string { return p.displayName }

// Capabilities returns the provider's static capability flags.
// Extraction streams carry no offset in the URL; resuming happens through
// a seek once the stream is attached.
func (p *ExtractionProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsLanguage:   len(p.languages) > 0,
		SupportsTimeOffset: false,
		IsExtractionBased:  true,
	}
}

// Languages returns the language codes this provider can serve
func (p *ExtractionProvider) Languages() []string {
	out := make([]string, len(p.languages))
	copy(out, p.languages)
	return out
}

// Resolve asks the extraction backend for a playable URL
func (p *ExtractionProvider) Resolve(ctx context.Context, req PlaybackRequest) (*ResolvedStream, error) {
	if p.client == nil {
		return nil, fmt.Errorf("no extraction client configured for %s", p.id)
	}

	resp, err := p.client.Extract(ctx, extract.Request{
		MediaType:   string(req.MediaType),
		ExternalID:  req.ExternalID,
		Season:      req.Season,
		Episode:     req.Episode,
		QualityHint: p.qualityHint,
	})
	if err != nil {
		return nil, err
	}

	kind := StreamKindDirect
	if resp.Kind == extract.KindManifest {
		kind = StreamKindManifest
	}

	return &ResolvedStream{
		URL:          resp.StreamURL,
		Kind:         kind,
		ProviderID:   p.id,
		QualityLabel: resp.QualityLabel,
		SizeLabel:    resp.SizeLabel,
	}, nil
}

// HealthCheck pings the extraction backend
func (p *ExtractionProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("no extraction client configured for %s", p.id)
	}
	return p.client.HealthCheck(ctx)
}
