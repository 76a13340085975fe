package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player"
	"github.com/vesperhq/vesper/internal/prefs"
	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/resolver"
)

// failoverTimeout bounds the automatic re-resolution that follows a
// fatal playback failure
const failoverTimeout = 60 * time.Second

// MetadataSource provides the season/episode layout the engine needs
// for navigation clamping
type MetadataSource interface {
	GetSeasons(ctx context.Context, id string) ([]library.Season, error)
}

// EngineConfig wires an engine together
type EngineConfig struct {
	Registry *providers.Registry
	Resolver *resolver.Resolver
	Handle   player.Handle
	Playback playback.Config
	Metadata MetadataSource
	Prefs    *prefs.Store
	// Volume and ExtraArgs are player output defaults applied to
	// every attachment
	Volume    int
	ExtraArgs []string
	// OpenURL opens embed streams externally. Defaults to a no-op
	// that reports an error.
	OpenURL func(url string) error
	Events  Events
	Logger  *slog.Logger
}

// Engine owns the active viewing session
type Engine struct {
	registry   *providers.Registry
	resolver   *resolver.Resolver
	controller *playback.Controller
	metadata   MetadataSource
	prefs      *prefs.Store
	volume     int
	extraArgs  []string
	openURL    func(url string) error
	events     Events
	logger     *slog.Logger

	// token orders stream requests. Only the result matching the
	// latest token is applied; everything older is discarded.
	token atomic.Uint64

	mu  sync.Mutex
	cur *current
}

type current struct {
	id        string
	item      library.Item
	mediaType providers.MediaType
	season    int
	episode   int
	language  string

	ranked        []providers.Provider
	providerIndex int
	stream        *providers.ResolvedStream
	external      bool

	// pendingOffset is consumed by exactly one resolution, then reset
	pendingOffset time.Duration

	seasons       []library.Season
	seasonsLoaded bool
	fullscreen    bool
}

// NewEngine creates a session engine and its playback controller
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OpenURL == nil {
		cfg.OpenURL = func(string) error {
			return fmt.Errorf("no external opener configured")
		}
	}

	e := &Engine{
		registry:  cfg.Registry,
		resolver:  cfg.Resolver,
		metadata:  cfg.Metadata,
		prefs:     cfg.Prefs,
		volume:    cfg.Volume,
		extraArgs: cfg.ExtraArgs,
		openURL:   cfg.OpenURL,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}

	e.controller = playback.NewController(cfg.Handle, cfg.Playback, playback.Events{
		OnStateChange: e.forwardStateChange,
		OnFailure:     e.handlePlaybackFailure,
	}, cfg.Logger)

	return e
}

// Controller exposes transport controls for the active stream
func (e *Engine) Controller() *playback.Controller {
	return e.controller
}

// Start begins a session for an item
func (e *Engine) Start(ctx context.Context, item library.Item, opts StartOptions) error {
	mediaType, err := providers.ParseMediaType(item.MediaType)
	if err != nil {
		return err
	}

	language := opts.Language
	if language == "" && e.prefs != nil {
		language = e.prefs.LastLanguage()
	}
	pinned := opts.ProviderID
	if pinned == "" && e.prefs != nil {
		pinned = e.prefs.LastProvider()
	}

	ranked := e.rankWithPin(language, pinned)

	e.mu.Lock()
	e.cur = &current{
		id:            uuid.NewString(),
		item:          item,
		mediaType:     mediaType,
		season:        opts.Season,
		episode:       opts.Episode,
		language:      language,
		ranked:        ranked,
		pendingOffset: opts.ResumeFrom,
		fullscreen:    opts.Fullscreen,
	}
	sessionID := e.cur.id
	e.mu.Unlock()

	e.logger.Info("session started",
		"session", sessionID, "item", item.ID, "type", string(mediaType), "language", language)

	return e.resolveAndAttach(ctx)
}

// Retry re-resolves the current item starting from the same provider,
// resuming at the last known position
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	e.cur.pendingOffset = e.controller.Position()
	e.mu.Unlock()

	return e.resolveAndAttach(ctx)
}

// SwitchProvider pins a provider as the first candidate and re-resolves,
// carrying the current position over to the new stream
func (e *Engine) SwitchProvider(ctx context.Context, providerID string) error {
	if _, err := e.registry.Get(providerID); err != nil {
		return fmt.Errorf("unknown provider %q", providerID)
	}

	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	e.cur.ranked = e.rankWithPin(e.cur.language, providerID)
	e.cur.providerIndex = 0
	e.cur.pendingOffset = e.controller.Position()
	e.mu.Unlock()

	return e.resolveAndAttach(ctx)
}

// SwitchLanguage re-ranks providers for the new language and
// re-resolves, carrying the current position over
func (e *Engine) SwitchLanguage(ctx context.Context, language string) error {
	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	e.cur.language = language
	e.cur.ranked = e.registry.Rank(language)
	e.cur.providerIndex = 0
	e.cur.pendingOffset = e.controller.Position()
	e.mu.Unlock()

	return e.resolveAndAttach(ctx)
}

// NextEpisode advances to the following episode, crossing season
// boundaries. At the end of the series it stays put and reports false.
func (e *Engine) NextEpisode(ctx context.Context) (bool, error) {
	return e.navigate(ctx, +1)
}

// PreviousEpisode steps back one episode, crossing season boundaries.
// At the start of the series it stays put and reports false.
func (e *Engine) PreviousEpisode(ctx context.Context) (bool, error) {
	return e.navigate(ctx, -1)
}

func (e *Engine) navigate(ctx context.Context, direction int) (bool, error) {
	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return false, ErrNoActiveSession
	}
	if e.cur.mediaType != providers.MediaTypeSeries {
		e.mu.Unlock()
		return false, nil
	}
	itemID := e.cur.item.ID
	loaded := e.cur.seasonsLoaded
	e.mu.Unlock()

	if !loaded {
		seasons, err := e.metadata.GetSeasons(ctx, itemID)
		if err != nil {
			return false, fmt.Errorf("failed to load season layout: %w", err)
		}
		e.mu.Lock()
		if e.cur == nil {
			e.mu.Unlock()
			return false, ErrNoActiveSession
		}
		e.cur.seasons = seasons
		e.cur.seasonsLoaded = true
		e.mu.Unlock()
	}

	e.mu.Lock()
	var season, episode int
	var ok bool
	if direction > 0 {
		season, episode, ok = nextEpisode(e.cur.seasons, e.cur.season, e.cur.episode)
	} else {
		season, episode, ok = previousEpisode(e.cur.seasons, e.cur.season, e.cur.episode)
	}
	if !ok {
		// Clamped at the boundary, nothing changes
		e.mu.Unlock()
		e.logger.Debug("episode navigation clamped",
			"season", e.currentSeasonUnsafe(), "direction", direction)
		return false, nil
	}
	e.cur.season = season
	e.cur.episode = episode
	e.cur.pendingOffset = 0
	e.mu.Unlock()

	if err := e.resolveAndAttach(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// currentSeasonUnsafe is only for logging after the lock is released;
// a slightly stale value is fine
func (e *Engine) currentSeasonUnsafe() int {
	if e.cur == nil {
		return 0
	}
	return e.cur.season
}

// SetFullscreen toggles fullscreen on the active stream. Best effort:
// refusal is logged, never surfaced.
func (e *Engine) SetFullscreen(ctx context.Context, on bool) {
	e.mu.Lock()
	if e.cur != nil {
		e.cur.fullscreen = on
	}
	e.mu.Unlock()

	if err := e.controller.SetFullscreen(ctx, on); err != nil {
		e.logger.Debug("fullscreen request refused", "error", err)
	}
}

// Current returns a snapshot of the active session
func (e *Engine) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return Snapshot{}, false
	}
	return e.snapshotLocked(), true
}

// Stop detaches playback and ends the session
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.cur = nil
	e.mu.Unlock()
	return e.controller.Detach(ctx)
}

// resolveAndAttach resolves a stream for the current session state and
// attaches it. A request that is superseded before its result applies
// is discarded with ErrSuperseded.
func (e *Engine) resolveAndAttach(ctx context.Context) error {
	token := e.token.Add(1)

	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}
	req := providers.PlaybackRequest{
		MediaType:  e.cur.mediaType,
		ExternalID: e.cur.item.ID,
		Season:     e.cur.season,
		Episode:    e.cur.episode,
		Language:   e.cur.language,
		TimeOffset: e.cur.pendingOffset,
	}
	ranked := e.cur.ranked
	start := e.cur.providerIndex
	e.mu.Unlock()

	stream, idx, err := e.resolver.Resolve(ctx, req, ranked, start)

	var rate float64
	if e.prefs != nil {
		rate = e.prefs.PlaybackRate()
	}

	e.mu.Lock()
	if e.token.Load() != token {
		e.mu.Unlock()
		e.logger.Debug("discarding superseded stream result", "token", token)
		return ErrSuperseded
	}
	if e.cur == nil {
		e.mu.Unlock()
		return ErrNoActiveSession
	}

	if err != nil {
		e.mu.Unlock()
		failure := Failure{
			Err:     err,
			Actions: []Action{ActionRetry, ActionSwitchProvider, ActionSwitchLanguage},
		}
		if e.events.OnFailure != nil {
			e.events.OnFailure(failure)
		}
		return err
	}

	e.cur.stream = stream
	e.cur.providerIndex = idx
	e.cur.external = stream.Kind == providers.StreamKindEmbed

	// The carried offset is consumed by this resolution only
	offset := e.cur.pendingOffset
	e.cur.pendingOffset = 0

	options := player.LoadOptions{
		StartAt:    offset,
		Volume:     e.volume,
		Rate:       rate,
		Fullscreen: e.cur.fullscreen,
		Title:      e.sessionTitleLocked(),
		Headers:    stream.Headers,
		Referer:    stream.Headers["Referer"],
		ExtraArgs:  e.extraArgs,
	}
	external := e.cur.external
	snapshot := e.snapshotLocked()
	snapshot.Token = token
	e.mu.Unlock()

	e.persistChoice(snapshot.ProviderID, snapshot.Language)

	if external {
		// Embed pages play in the browser; the offset rides in the URL
		if err := e.openURL(stream.URL); err != nil {
			return fmt.Errorf("failed to open embed stream: %w", err)
		}
		_ = e.controller.Detach(ctx)
	} else {
		if err := e.controller.Attach(ctx, stream.URL, options); err != nil {
			return err
		}
	}

	if e.events.OnStreamChange != nil {
		e.events.OnStreamChange(snapshot)
	}
	return nil
}

// rankWithPin ranks providers for a language, optionally forcing one
// provider to the front
func (e *Engine) rankWithPin(language, pinnedID string) []providers.Provider {
	ranked := e.registry.Rank(language)
	if pinnedID == "" {
		return ranked
	}

	pinned, err := e.registry.Get(pinnedID)
	if err != nil {
		return ranked
	}

	out := make([]providers.Provider, 0, len(ranked))
	out = append(out, pinned)
	for _, p := range ranked {
		if p.ID() != pinnedID {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) persistChoice(providerID, language string) {
	if e.prefs == nil {
		return
	}
	if err := e.prefs.SetLastProvider(providerID); err != nil {
		e.logger.Debug("failed to persist provider choice", "error", err)
	}
	if language != "" {
		if err := e.prefs.SetLastLanguage(language); err != nil {
			e.logger.Debug("failed to persist language choice", "error", err)
		}
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID: e.cur.id,
		ItemID:    e.cur.item.ID,
		Title:     e.cur.item.Title,
		MediaType: e.cur.mediaType,
		Season:    e.cur.season,
		Episode:   e.cur.episode,
		Language:  e.cur.language,
		External:  e.cur.external,
		Token:     e.token.Load(),
	}
	if e.cur.stream != nil {
		s.ProviderID = e.cur.stream.ProviderID
		s.StreamURL = e.cur.stream.URL
		s.StreamKind = e.cur.stream.Kind
		s.QualityLabel = e.cur.stream.QualityLabel
		s.SizeLabel = e.cur.stream.SizeLabel
	}
	return s
}

func (e *Engine) sessionTitleLocked() string {
	if e.cur.mediaType == providers.MediaTypeSeries {
		return fmt.Sprintf("%s S%02dE%02d", e.cur.item.Title, e.cur.season, e.cur.episode)
	}
	return e.cur.item.Title
}

func (e *Engine) forwardStateChange(from, to playback.State) {
	if e.events.OnStateChange != nil {
		e.events.OnStateChange(from, to)
	}
}

// handlePlaybackFailure reacts to a fatal controller failure: the same
// content may play fine elsewhere, so remaining ranked providers are
// tried automatically before the failure is surfaced
func (e *Engine) handlePlaybackFailure(err error) {
	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return
	}
	next := e.cur.providerIndex + 1
	if next < len(e.cur.ranked) {
		e.cur.providerIndex = next
		e.cur.pendingOffset = e.controller.Position()
		e.mu.Unlock()

		e.logger.Warn("playback failed, failing over to next provider",
			"error", err, "next_index", next)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), failoverTimeout)
			defer cancel()
			// Resolution errors surface through the usual failure path
			_ = e.resolveAndAttach(ctx)
		}()
		return
	}
	e.mu.Unlock()

	if e.events.OnFailure == nil {
		return
	}
	e.events.OnFailure(Failure{
		Err:     err,
		Actions: []Action{ActionRetry, ActionSwitchProvider},
	})
}

// nextEpisode finds the episode after (season, episode), crossing into
// the next non-empty season. ok is false at the end of the series.
func nextEpisode(seasons []library.Season, season, episode int) (int, int, bool) {
	for si, s := range seasons {
		if s.Number != season {
			continue
		}
		for ei, ep := range s.Episodes {
			if ep.Episode != episode {
				continue
			}
			if ei+1 < len(s.Episodes) {
				return s.Number, s.Episodes[ei+1].Episode, true
			}
			for _, next := range seasons[si+1:] {
				if len(next.Episodes) > 0 {
					return next.Number, next.Episodes[0].Episode, true
				}
			}
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// previousEpisode finds the episode before (season, episode), crossing
// into the previous non-empty season. ok is false at the start.
func previousEpisode(seasons []library.Season, season, episode int) (int, int, bool) {
	for si, s := range seasons {
		if s.Number != season {
			continue
		}
		for ei, ep := range s.Episodes {
			if ep.Episode != episode {
				continue
			}
			if ei > 0 {
				return s.Number, s.Episodes[ei-1].Episode, true
			}
			for pi := si - 1; pi >= 0; pi-- {
				prev := seasons[pi]
				if len(prev.Episodes) > 0 {
					return prev.Number, prev.Episodes[len(prev.Episodes)-1].Episode, true
				}
			}
			return 0, 0, false
		}
	}
	return 0, 0, false
}
