package extract

import "fmt"

// Kind describes how the returned URL has to be played
type Kind string

const (
	KindDirect   Kind = "direct"   // playable as-is
	KindManifest Kind = "manifest" // adaptive playlist, needs the HLS path
)

// Request identifies the content to extract
type Request struct {
	MediaType   string `json:"mediaType"` // movie or series
	ExternalID  string `json:"externalId"`
	Season      int    `json:"season,omitempty"`
	Episode     int    `json:"episode,omitempty"`
	QualityHint string `json:"qualityHint,omitempty"`
}

// Response is a successful extraction result
type Response struct {
	StreamURL    string `json:"streamUrl"`
	Kind         Kind   `json:"kind"`
	QualityLabel string `json:"qualityLabel,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	SizeLabel    string `json:"sizeLabel,omitempty"`
}

// ErrorDetail is the extraction backend's error envelope. Every variant,
// including a declared missing dependency (e.g. no transcoder available),
// is a per-provider failure eligible for fallback, never a fatal error.
type ErrorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Dependency string `json:"dependency,omitempty"`
}

// Error implements the error interface
func (e *ErrorDetail) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("extraction failed (%s): %s [dependency: %s]", e.Code, e.Message, e.Dependency)
	}
	if e.Code != "" {
		return fmt.Sprintf("extraction failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

// errorEnvelope mirrors the wire shape of error responses
type errorEnvelope struct {
	Error *ErrorDetail `json:"error"`
}
