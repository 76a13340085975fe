package continuity

import (
	"context"
	"fmt"
	"time"

	"github.com/vesperhq/vesper/internal/library"
)

// ProgressAPI is the slice of the library client the remote store uses
type ProgressAPI interface {
	GetProgress(ctx context.Context, contentID string) (*library.Progress, bool, error)
	SaveProgress(ctx context.Context, progress library.Progress) error
}

// RemoteStore mirrors watch positions to the library backend. The
// backend keys progress by content id only, so season and episode are
// folded into the id for series.
type RemoteStore struct {
	api ProgressAPI
}

// NewRemoteStore creates a library-backed store
func NewRemoteStore(api ProgressAPI) *RemoteStore {
	return &RemoteStore{api: api}
}

func remoteKey(contentID string, season, episode int) string {
	if season == 0 && episode == 0 {
		return contentID
	}
	return fmt.Sprintf("%s:s%de%d", contentID, season, episode)
}

// Save pushes the position to the backend
func (s *RemoteStore) Save(ctx context.Context, record Record) error {
	return s.api.SaveProgress(ctx, library.Progress{
		ContentID:       remoteKey(record.ContentID, record.Season, record.Episode),
		PositionSeconds: int(record.Position.Seconds()),
		DurationSeconds: int(record.Duration.Seconds()),
	})
}

// Load fetches the position from the backend
func (s *RemoteStore) Load(ctx context.Context, contentID string, season, episode int) (*Record, bool, error) {
	progress, ok, err := s.api.GetProgress(ctx, remoteKey(contentID, season, episode))
	if err != nil || !ok {
		return nil, false, err
	}

	return &Record{
		ContentID: contentID,
		Season:    season,
		Episode:   episode,
		Position:  time.Duration(progress.PositionSeconds) * time.Second,
		Duration:  time.Duration(progress.DurationSeconds) * time.Second,
	}, true, nil
}

// Recent is not supported by the backend
func (s *RemoteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	return nil, nil
}

// Delete is not supported by the backend
func (s *RemoteStore) Delete(ctx context.Context, contentID string) error {
	return nil
}
