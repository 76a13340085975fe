// Package continuity persists watch positions so a session can resume
// where it left off, locally and against the library backend.
package continuity

import (
	"context"
	"time"
)

// completionThreshold marks a record as finished once this fraction of
// the stream has been watched
const completionThreshold = 0.95

// Record is one watch-position entry
type Record struct {
	ContentID  string
	Title      string
	MediaType  string
	Season     int
	Episode    int
	Position   time.Duration
	Duration   time.Duration
	ProviderID string
	Language   string
	WatchedAt  time.Time
	Completed  bool
}

// Percent returns watch progress as 0-100
func (r Record) Percent() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return (r.Position.Seconds() / r.Duration.Seconds()) * 100
}

// Store persists watch positions
type Store interface {
	Save(ctx context.Context, record Record) error
	// Load returns the most recent record for the content position.
	// ok is false when nothing has been recorded.
	Load(ctx context.Context, contentID string, season, episode int) (*Record, bool, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, contentID string) error
}
