package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player"
	"github.com/vesperhq/vesper/internal/prefs"
	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/resolver"
)

// stubProvider is a scriptable provider for engine tests
type stubProvider struct {
	id       string
	offsetOK bool
	failWith error
	// block, when set, holds Resolve until the channel closes;
	// entered reports that Resolve is in flight
	block    chan struct{}
	entered  sync.Once
	inFlight chan struct{}

	mu       sync.Mutex
	requests []providers.PlaybackRequest
}

func (s *stubProvider) ID() string          { return s.id }
func (s *stubProvider) DisplayName() string { return s.id }
func (s *stubProvider) Capabilities() providers.Capabilities {
	return providers.Capabilities{SupportsLanguage: true, SupportsTimeOffset: s.offsetOK}
}
func (s *stubProvider) Languages() []string { return []string{"en", "es-419"} }

func (s *stubProvider) Resolve(ctx context.Context, req providers.PlaybackRequest) (*providers.ResolvedStream, error) {
	if s.block != nil {
		if s.inFlight != nil {
			s.entered.Do(func() { close(s.inFlight) })
		}
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	url := fmt.Sprintf("https://%s.example/stream/%s/s%de%d", s.id, req.ExternalID, req.Season, req.Episode)
	if req.TimeOffset > 0 {
		url += fmt.Sprintf("?t=%d", int(req.TimeOffset.Seconds()))
	}
	return &providers.ResolvedStream{
		URL:        url,
		Kind:       providers.StreamKindDirect,
		ProviderID: s.id,
	}, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func (s *stubProvider) lastRequest() providers.PlaybackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// quietHandle is a player.Handle that accepts everything
type quietHandle struct {
	mu       sync.Mutex
	loads    []player.LoadOptions
	loadURLs []string

	onProgress func(player.Progress)
	onEnd      func()
	onError    func(error)
}

func (q *quietHandle) Load(ctx context.Context, url string, options player.LoadOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loadURLs = append(q.loadURLs, url)
	q.loads = append(q.loads, options)
	return nil
}

func (q *quietHandle) Pause(ctx context.Context) error                      { return nil }
func (q *quietHandle) Resume(ctx context.Context) error                     { return nil }
func (q *quietHandle) Seek(ctx context.Context, p time.Duration) error      { return nil }
func (q *quietHandle) SetVolume(ctx context.Context, percent int) error     { return nil }
func (q *quietHandle) SetMuted(ctx context.Context, muted bool) error       { return nil }
func (q *quietHandle) SetRate(ctx context.Context, rate float64) error      { return nil }
func (q *quietHandle) SetFullscreen(ctx context.Context, on bool) error     { return nil }
func (q *quietHandle) Progress(ctx context.Context) (*player.Progress, error) {
	return nil, errors.New("not polled")
}
func (q *quietHandle) OnProgress(cb func(player.Progress)) { q.onProgress = cb }
func (q *quietHandle) OnEnd(cb func())                     { q.onEnd = cb }
func (q *quietHandle) OnError(cb func(err error))          { q.onError = cb }
func (q *quietHandle) State() player.State                 { return player.StateActive }
func (q *quietHandle) Release(ctx context.Context) error   { return nil }

func (q *quietHandle) lastURL() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.loadURLs) == 0 {
		return ""
	}
	return q.loadURLs[len(q.loadURLs)-1]
}

func (q *quietHandle) lastLoad() player.LoadOptions {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loads[len(q.loads)-1]
}

// stubMetadata serves a fixed season layout
type stubMetadata struct {
	seasons []library.Season
	err     error
	calls   int
}

func (s *stubMetadata) GetSeasons(ctx context.Context, id string) ([]library.Season, error) {
	s.calls++
	return s.seasons, s.err
}

func twoSeasons() []library.Season {
	return []library.Season{
		{Number: 1, Episodes: []library.Episode{
			{ID: "e1", Season: 1, Episode: 1},
			{ID: "e2", Season: 1, Episode: 2},
		}},
		{Number: 2, Episodes: []library.Episode{
			{ID: "e3", Season: 2, Episode: 1},
		}},
	}
}

type engineFixture struct {
	engine    *Engine
	handle    *quietHandle
	registry  *providers.Registry
	metadata  *stubMetadata
	prefs     *prefs.Store
	failures  []Failure
	snapshots []Snapshot
	mu        sync.Mutex
}

func newFixture(t *testing.T, provs ...providers.Provider) *engineFixture {
	t.Helper()

	registry := providers.NewRegistry()
	for _, p := range provs {
		require.NoError(t, registry.Register(p))
	}

	f := &engineFixture{
		handle:   &quietHandle{},
		registry: registry,
		metadata: &stubMetadata{seasons: twoSeasons()},
		prefs:    prefs.NewStore(prefs.NewMemoryRepository(), "en"),
	}

	f.engine = NewEngine(EngineConfig{
		Registry: registry,
		Resolver: resolver.New(5*time.Second, nil),
		Handle:   f.handle,
		Playback: playback.DefaultConfig(),
		Metadata: f.metadata,
		Prefs:    f.prefs,
		Events: Events{
			OnFailure: func(failure Failure) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.failures = append(f.failures, failure)
			},
			OnStreamChange: func(snapshot Snapshot) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.snapshots = append(f.snapshots, snapshot)
			},
		},
	})
	return f
}

func movie() library.Item {
	return library.Item{ID: "tt0133093", Title: "The Matrix", MediaType: "movie"}
}

func series() library.Item {
	return library.Item{ID: "bb-1", Title: "Breaking Code", MediaType: "series"}
}

func TestEngine_StartAttachesStream(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora", offsetOK: true})

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))

	snapshot, ok := f.engine.Current()
	require.True(t, ok)
	assert.Equal(t, "vidora", snapshot.ProviderID)
	assert.Equal(t, providers.MediaTypeMovie, snapshot.MediaType)
	assert.Contains(t, f.handle.lastURL(), "vidora.example")
}

func TestEngine_ResumeOffsetForwarded(t *testing.T) {
	p := &stubProvider{id: "vidora", offsetOK: true}
	f := newFixture(t, p)

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{
		Language:   "en",
		ResumeFrom: 754 * time.Second,
	}))

	assert.Equal(t, 754*time.Second, p.lastRequest().TimeOffset)
	assert.Equal(t, 754*time.Second, f.handle.lastLoad().StartAt)
}

func TestEngine_OffsetConsumedOnce(t *testing.T) {
	p := &stubProvider{id: "vidora", offsetOK: true}
	f := newFixture(t, p)

	require.NoError(t, f.engine.Start(context.Background(), series(), StartOptions{
		Season: 1, Episode: 1,
		Language:   "en",
		ResumeFrom: 300 * time.Second,
	}))
	assert.Equal(t, 300*time.Second, p.lastRequest().TimeOffset)

	// A fresh episode starts from the beginning
	moved, err := f.engine.NextEpisode(context.Background())
	require.NoError(t, err)
	require.True(t, moved)
	assert.Zero(t, p.lastRequest().TimeOffset)
	assert.Zero(t, f.handle.lastLoad().StartAt)
}

func TestEngine_StartAppliesStoredPreferences(t *testing.T) {
	a := &stubProvider{id: "vidora", offsetOK: true}
	b := &stubProvider{id: "nimbus", offsetOK: true}
	f := newFixture(t, a, b)

	require.NoError(t, f.prefs.SetLastProvider("nimbus"))
	require.NoError(t, f.prefs.SetPlaybackRate(1.5))

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))

	snapshot, _ := f.engine.Current()
	assert.Equal(t, "nimbus", snapshot.ProviderID)
	assert.Equal(t, 1.5, f.handle.lastLoad().Rate)

	// An explicit pin wins over the stored preference
	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{
		Language:   "en",
		ProviderID: "vidora",
	}))
	snapshot, _ = f.engine.Current()
	assert.Equal(t, "vidora", snapshot.ProviderID)
}

func TestEngine_PlayerOutputDefaultsForwarded(t *testing.T) {
	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{id: "vidora", offsetOK: true}))

	handle := &quietHandle{}
	engine := NewEngine(EngineConfig{
		Registry:  registry,
		Resolver:  resolver.New(5*time.Second, nil),
		Handle:    handle,
		Playback:  playback.DefaultConfig(),
		Prefs:     prefs.NewStore(prefs.NewMemoryRepository(), "en"),
		Volume:    55,
		ExtraArgs: []string{"--hwdec=auto"},
	})

	require.NoError(t, engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))

	load := handle.lastLoad()
	assert.Equal(t, 55, load.Volume)
	assert.Equal(t, []string{"--hwdec=auto"}, load.ExtraArgs)
	assert.Equal(t, 1.0, load.Rate)
}

func TestEngine_SwitchProviderCarriesPosition(t *testing.T) {
	a := &stubProvider{id: "vidora", offsetOK: true}
	b := &stubProvider{id: "nimbus", offsetOK: true}
	f := newFixture(t, a, b)

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))

	// Simulate playback progress before the switch
	f.handle.onProgress(player.Progress{Position: 42 * time.Second, Duration: time.Hour})

	require.NoError(t, f.engine.SwitchProvider(context.Background(), "nimbus"))

	snapshot, _ := f.engine.Current()
	assert.Equal(t, "nimbus", snapshot.ProviderID)
	assert.Equal(t, 42*time.Second, b.lastRequest().TimeOffset)
	assert.Equal(t, "nimbus", f.prefs.LastProvider())
}

func TestEngine_SwitchProviderUnknownRejected(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora"})
	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{}))
	assert.Error(t, f.engine.SwitchProvider(context.Background(), "nope"))
}

func TestEngine_SwitchLanguageReranks(t *testing.T) {
	a := &stubProvider{id: "vidora", offsetOK: true}
	f := newFixture(t, a)

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))
	require.NoError(t, f.engine.SwitchLanguage(context.Background(), "es-419"))

	snapshot, _ := f.engine.Current()
	assert.Equal(t, "es-419", snapshot.Language)
	assert.Equal(t, "es-419", a.lastRequest().Language)
	assert.Equal(t, "es-419", f.prefs.LastLanguage())
}

func TestEngine_NavigationClampsAtBoundaries(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora"})

	require.NoError(t, f.engine.Start(context.Background(), series(), StartOptions{Season: 1, Episode: 1}))

	// Backwards from the first episode stays put
	moved, err := f.engine.PreviousEpisode(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	snapshot, _ := f.engine.Current()
	assert.Equal(t, 1, snapshot.Season)
	assert.Equal(t, 1, snapshot.Episode)

	// Forward across the season boundary
	for _, want := range []struct{ season, episode int }{{1, 2}, {2, 1}} {
		moved, err = f.engine.NextEpisode(context.Background())
		require.NoError(t, err)
		require.True(t, moved)
		snapshot, _ = f.engine.Current()
		assert.Equal(t, want.season, snapshot.Season)
		assert.Equal(t, want.episode, snapshot.Episode)
	}

	// Forward past the last episode stays put
	moved, err = f.engine.NextEpisode(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	snapshot, _ = f.engine.Current()
	assert.Equal(t, 2, snapshot.Season)
	assert.Equal(t, 1, snapshot.Episode)

	// Season layout fetched once and cached
	assert.Equal(t, 1, f.metadata.calls)
}

func TestEngine_NavigationIgnoredForMovies(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora"})
	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{}))

	moved, err := f.engine.NextEpisode(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Zero(t, f.metadata.calls)
}

func TestEngine_StaleResolutionDiscarded(t *testing.T) {
	slow := &stubProvider{id: "slowprov", offsetOK: true, block: make(chan struct{}), inFlight: make(chan struct{})}
	fast := &stubProvider{id: "fastprov", offsetOK: true}
	f := newFixture(t, slow, fast)

	started := make(chan error, 1)
	go func() {
		started <- f.engine.Start(context.Background(), movie(), StartOptions{Language: "en", ProviderID: "slowprov"})
	}()

	// Wait until the slow resolution is in flight
	select {
	case <-slow.inFlight:
	case <-time.After(time.Second):
		t.Fatal("slow resolution never started")
	}

	// A newer request lands while the old one is still resolving
	require.NoError(t, f.engine.SwitchProvider(context.Background(), "fastprov"))

	close(slow.block)
	require.ErrorIs(t, <-started, ErrSuperseded)

	snapshot, ok := f.engine.Current()
	require.True(t, ok)
	assert.Equal(t, "fastprov", snapshot.ProviderID)
	assert.Contains(t, f.handle.lastURL(), "fastprov.example")
}

func TestEngine_ExhaustionSurfacesActions(t *testing.T) {
	f := newFixture(t,
		&stubProvider{id: "a", failWith: errors.New("down")},
		&stubProvider{id: "b", failWith: errors.New("down")},
	)

	err := f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"})
	require.Error(t, err)

	var exhausted *resolver.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 2)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.failures, 1)
	assert.Contains(t, f.failures[0].Actions, ActionRetry)
	assert.Contains(t, f.failures[0].Actions, ActionSwitchProvider)
	assert.Contains(t, f.failures[0].Actions, ActionSwitchLanguage)
}

func TestEngine_FatalPlaybackFailsOverAutomatically(t *testing.T) {
	a := &stubProvider{id: "vidora", offsetOK: true}
	b := &stubProvider{id: "nimbus", offsetOK: true}
	f := newFixture(t, a, b)

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))
	require.Contains(t, f.handle.lastURL(), "vidora.example")

	f.handle.onError(playback.FatalError(errors.New("stream rejected")))

	require.Eventually(t, func() bool {
		snapshot, ok := f.engine.Current()
		return ok && snapshot.ProviderID == "nimbus"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, f.handle.lastURL(), "nimbus.example")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.failures)
}

func TestEngine_FatalPlaybackOnLastProviderSurfaces(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora", offsetOK: true})

	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{Language: "en"}))

	f.handle.onError(playback.FatalError(errors.New("stream rejected")))

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.failures) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.failures[0].Actions, ActionRetry)
	assert.Contains(t, f.failures[0].Actions, ActionSwitchProvider)
}

func TestEngine_StopEndsSession(t *testing.T) {
	f := newFixture(t, &stubProvider{id: "vidora"})
	require.NoError(t, f.engine.Start(context.Background(), movie(), StartOptions{}))

	require.NoError(t, f.engine.Stop(context.Background()))
	_, ok := f.engine.Current()
	assert.False(t, ok)

	assert.ErrorIs(t, f.engine.Retry(context.Background()), ErrNoActiveSession)
}

func TestIdleTimer(t *testing.T) {
	t.Run("fires after inactivity", func(t *testing.T) {
		fired := make(chan struct{}, 1)
		timer := NewIdleTimer(20*time.Millisecond, func() { fired <- struct{}{} })
		defer timer.Stop()

		timer.Touch()
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("idle timer never fired")
		}
	})

	t.Run("suspend holds the countdown", func(t *testing.T) {
		fired := make(chan struct{}, 1)
		timer := NewIdleTimer(20*time.Millisecond, func() { fired <- struct{}{} })
		defer timer.Stop()

		timer.Touch()
		timer.Suspend()

		select {
		case <-fired:
			t.Fatal("fired while suspended")
		case <-time.After(60 * time.Millisecond):
		}

		timer.Resume()
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("idle timer never fired after resume")
		}
	})

	t.Run("touch restarts the countdown", func(t *testing.T) {
		fired := make(chan struct{}, 1)
		timer := NewIdleTimer(50*time.Millisecond, func() { fired <- struct{}{} })
		defer timer.Stop()

		timer.Touch()
		for i := 0; i < 3; i++ {
			time.Sleep(20 * time.Millisecond)
			timer.Touch()
			select {
			case <-fired:
				t.Fatal("fired despite activity")
			default:
			}
		}
	})
}
