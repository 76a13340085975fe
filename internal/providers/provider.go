package providers

import (
	"context"
	"time"
)

// MediaType represents the type of media content
type MediaType string

const (
	MediaTypeMovie     MediaType = "movie"
	MediaTypeSeries    MediaType = "series"
	MediaTypeAudiobook MediaType = "audiobook"
)

// ParseMediaType parses a media type string
func ParseMediaType(s string) (MediaType, error) {
	switch s {
	case "movie":
		return MediaTypeMovie, nil
	case "series", "tv", "show":
		return MediaTypeSeries, nil
	case "audiobook":
		return MediaTypeAudiobook, nil
	default:
		return "", &ErrInvalidMediaType{Value: s}
	}
}

// ErrInvalidMediaType is returned for an unknown media type string
type ErrInvalidMediaType struct {
	Value string
}

func (e *ErrInvalidMediaType) Error() string {
	return "invalid media type: " + e.Value
}

// StreamKind describes how a resolved URL has to be played
type StreamKind string

const (
	StreamKindEmbed    StreamKind = "embed"    // whole third-party page
	StreamKindDirect   StreamKind = "direct"   // single media file
	StreamKindManifest StreamKind = "manifest" // adaptive playlist (HLS-style)
)

// Capabilities are the static capability flags of a provider
type Capabilities struct {
	SupportsLanguage   bool
	SupportsTimeOffset bool
	IsExtractionBased  bool
}

// PlaybackRequest identifies the content a session wants to play.
// Immutable once issued.
type PlaybackRequest struct {
	MediaType    MediaType
	ExternalID   string
	Season       int
	Episode      int
	Language     string
	TimeOffset   time.Duration
	ProviderHint string
}

// ResolvedStream is a playable result produced by resolving a request
// against a single provider. It is consumed exactly once by the playback
// controller and discarded on provider change.
type ResolvedStream struct {
	URL          string
	Kind         StreamKind
	ProviderID   string
	QualityLabel string
	SizeLabel    string
	Headers      map[string]string
}

// Provider is a single playback source. Implementations are EmbedProvider
// (pure URL construction over a page template) and ExtractionProvider
// (server-side debrid lookup).
type Provider interface {
	// Identity and static capability flags
	ID() string
	DisplayName() string
	Capabilities() Capabilities

	// Languages returns the codes this provider can serve. Empty means
	// language-agnostic.
	Languages() []string

	// Resolve turns a request into a playable stream. Embed providers
	// cannot fail here (the page may still fail to load later, which the
	// playback controller reports); extraction providers may fail with a
	// recoverable per-provider error.
	Resolve(ctx context.Context, req PlaybackRequest) (*ResolvedStream, error)

	// HealthCheck probes the provider's backing service
	HealthCheck(ctx context.Context) error
}

// SupportsLanguageCode reports whether the provider declares support for
// the given language code
func SupportsLanguageCode(p Provider, code string) bool {
	if !p.Capabilities().SupportsLanguage {
		return false
	}
	for _, l := range p.Languages() {
		if l == code {
			return true
		}
	}
	return false
}

// ProviderStatus holds the health status of a provider
type ProviderStatus struct {
	ProviderID string
	Healthy    bool
	Status     string // "Online", "Offline: ...", "Checking...", "Pending"
	LastCheck  time.Time
}
