package continuity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// minResumePosition below which a stream restarts from the beginning
const minResumePosition = 30 * time.Second

// Syncer batches progress updates and flushes them to the stores on an
// interval. Progress without a known duration is held back; a position
// means nothing until the stream length is established.
type Syncer struct {
	local    Store
	remote   Store
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending *Record
}

// NewSyncer creates a syncer. remote may be nil for offline use.
func NewSyncer(local, remote Store, interval time.Duration, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		local:    local,
		remote:   remote,
		interval: interval,
		logger:   logger,
	}
}

// Note records the latest progress for the next flush. Records without
// a duration are dropped.
func (s *Syncer) Note(record Record) {
	if record.Duration <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &record
}

// Flush writes the pending record to the stores
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	record := s.pending
	s.pending = nil
	s.mu.Unlock()

	if record == nil {
		return nil
	}

	if err := s.local.Save(ctx, *record); err != nil {
		return err
	}

	if s.remote != nil {
		if err := s.remote.Save(ctx, *record); err != nil {
			// Remote sync is best effort; local is the source of truth
			s.logger.Warn("remote progress sync failed", "content", record.ContentID, "error", err)
		}
	}
	return nil
}

// Run flushes on the interval until ctx is cancelled, then performs a
// final flush so the last position is never lost
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.logger.Warn("final progress flush failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("progress flush failed", "error", err)
			}
		}
	}
}

// Resume returns the position to resume from, preferring the local
// store and falling back to the backend. Completed or barely-started
// records restart from the beginning.
func (s *Syncer) Resume(ctx context.Context, contentID string, season, episode int) (time.Duration, bool) {
	for _, store := range []Store{s.local, s.remote} {
		if store == nil {
			continue
		}
		record, ok, err := store.Load(ctx, contentID, season, episode)
		if err != nil {
			s.logger.Debug("resume lookup failed", "content", contentID, "error", err)
			continue
		}
		if !ok || record.Completed {
			continue
		}
		if record.Position < minResumePosition {
			return 0, false
		}
		return record.Position, true
	}
	return 0, false
}
