// Package resolver turns a playback request plus a ranked provider list
// into a concrete playable stream, advancing through the list on failure
// and reporting exhaustion with the collected per-provider reasons.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vesperhq/vesper/internal/providers"
)

// Failure records why a single provider could not serve a request
type Failure struct {
	ProviderID string
	Err        error
}

// ExhaustedError is returned when every candidate provider failed.
// It carries the per-provider reasons for diagnostics.
type ExhaustedError struct {
	Failures []Failure
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d providers failed", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.ProviderID, f.Err)
	}
	return b.String()
}

// Resolver orchestrates provider resolution with automatic failover
type Resolver struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a resolver. timeout bounds each individual provider attempt.
func New(timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{timeout: timeout, logger: logger}
}

// Resolve attempts providers from ranked[start:] in order and returns the
// first stream along with the index of the provider that served it.
// Embed providers resolve synchronously and cannot fail; extraction
// providers may fail and advance the cursor. Only when the ranked list is
// exhausted is an ExhaustedError returned.
func (r *Resolver) Resolve(ctx context.Context, req providers.PlaybackRequest, ranked []providers.Provider, start int) (*providers.ResolvedStream, int, error) {
	if len(ranked) == 0 {
		return nil, -1, fmt.Errorf("no providers available")
	}
	if start < 0 || start >= len(ranked) {
		start = 0
	}

	var failures []Failure

	for i := start; i < len(ranked); i++ {
		p := ranked[i]

		attempt := req
		if attempt.TimeOffset > 0 && !p.Capabilities().SupportsTimeOffset {
			// Best-effort policy: the offset is dropped, not an error
			r.logger.Debug("dropping unsupported time offset",
				"provider", p.ID(),
				"offset", attempt.TimeOffset,
			)
			attempt.TimeOffset = 0
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		stream, err := p.Resolve(attemptCtx, attempt)
		cancel()

		if err != nil {
			r.logger.Warn("provider failed, trying next candidate",
				"provider", p.ID(),
				"error", err,
				"remaining", len(ranked)-i-1,
			)
			failures = append(failures, Failure{ProviderID: p.ID(), Err: err})
			continue
		}

		r.logger.Info("stream resolved",
			"provider", p.ID(),
			"kind", stream.Kind,
			"quality", stream.QualityLabel,
		)
		return stream, i, nil
	}

	return nil, -1, &ExhaustedError{Failures: failures}
}
