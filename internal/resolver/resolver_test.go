package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperhq/vesper/internal/providers"
)

type fakeProvider struct {
	id           string
	offsetOK     bool
	failWith     error
	attempts     int
	lastRequest  providers.PlaybackRequest
	resolveDelay time.Duration
}

func (f *fakeProvider) ID() string          { return f.id }
func (f *fakeProvider) DisplayName() string { return f.id }
func (f *fakeProvider) Capabilities() providers.Capabilities {
	return providers.Capabilities{SupportsLanguage: true, SupportsTimeOffset: f.offsetOK}
}
func (f *fakeProvider) Languages() []string { return []string{"en"} }

func (f *fakeProvider) Resolve(ctx context.Context, req providers.PlaybackRequest) (*providers.ResolvedStream, error) {
	f.attempts++
	f.lastRequest = req
	if f.resolveDelay > 0 {
		select {
		case <-time.After(f.resolveDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &providers.ResolvedStream{
		URL:        fmt.Sprintf("https://%s.example/stream", f.id),
		Kind:       providers.StreamKindDirect,
		ProviderID: f.id,
	}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func TestResolver_FirstProviderServes(t *testing.T) {
	first := &fakeProvider{id: "vidora", offsetOK: true}
	second := &fakeProvider{id: "nimbus", offsetOK: true}

	r := New(time.Second, nil)
	stream, idx, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "tt0133093",
		Language:   "en",
	}, []providers.Provider{first, second}, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "vidora", stream.ProviderID)
	assert.Equal(t, 1, first.attempts)
	assert.Zero(t, second.attempts)
}

func TestResolver_FailoverToThird(t *testing.T) {
	first := &fakeProvider{id: "vidora", failWith: errors.New("dependency unavailable")}
	second := &fakeProvider{id: "nimbus", failWith: errors.New("empty stream url")}
	third := &fakeProvider{id: "solara"}

	r := New(time.Second, nil)
	stream, idx, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "tt0133093",
	}, []providers.Provider{first, second, third}, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "solara", stream.ProviderID)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 1, second.attempts)
}

func TestResolver_ExhaustionReportedOnce(t *testing.T) {
	ranked := []providers.Provider{
		&fakeProvider{id: "a", failWith: errors.New("boom a")},
		&fakeProvider{id: "b", failWith: errors.New("boom b")},
		&fakeProvider{id: "c", failWith: errors.New("boom c")},
	}

	r := New(time.Second, nil)
	_, idx, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "x",
	}, ranked, 0)

	require.Error(t, err)
	assert.Equal(t, -1, idx)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 3)
	assert.Equal(t, "a", exhausted.Failures[0].ProviderID)
	assert.Equal(t, "c", exhausted.Failures[2].ProviderID)

	// Exactly one attempt per provider, never an extra pass
	for _, p := range ranked {
		assert.Equal(t, 1, p.(*fakeProvider).attempts)
	}
}

func TestResolver_ResumeFromCursor(t *testing.T) {
	first := &fakeProvider{id: "vidora"}
	second := &fakeProvider{id: "nimbus"}

	r := New(time.Second, nil)
	stream, idx, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "tt0133093",
	}, []providers.Provider{first, second}, 1)

	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "nimbus", stream.ProviderID)
	assert.Zero(t, first.attempts)
}

func TestResolver_OffsetDroppedForIncapableProvider(t *testing.T) {
	capable := &fakeProvider{id: "vidora", offsetOK: true, failWith: errors.New("down")}
	incapable := &fakeProvider{id: "torstream", offsetOK: false}

	r := New(time.Second, nil)
	_, _, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "tt0133093",
		TimeOffset: 754 * time.Second,
	}, []providers.Provider{capable, incapable}, 0)

	require.NoError(t, err)
	assert.Equal(t, 754*time.Second, capable.lastRequest.TimeOffset)
	assert.Zero(t, incapable.lastRequest.TimeOffset)
}

func TestResolver_AttemptTimeout(t *testing.T) {
	slow := &fakeProvider{id: "slow", resolveDelay: 500 * time.Millisecond}
	fast := &fakeProvider{id: "fast"}

	r := New(50*time.Millisecond, nil)
	stream, _, err := r.Resolve(context.Background(), providers.PlaybackRequest{
		MediaType:  providers.MediaTypeMovie,
		ExternalID: "x",
	}, []providers.Provider{slow, fast}, 0)

	require.NoError(t, err)
	assert.Equal(t, "fast", stream.ProviderID)
}

func TestResolver_EmptyRankedList(t *testing.T) {
	r := New(time.Second, nil)
	_, _, err := r.Resolve(context.Background(), providers.PlaybackRequest{}, nil, 0)
	require.Error(t, err)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}
