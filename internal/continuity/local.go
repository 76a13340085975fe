package continuity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vesperhq/vesper/internal/database"
)

// LocalStore keeps watch positions in the local database
type LocalStore struct {
	db *gorm.DB
}

// NewLocalStore creates a database-backed store
func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{db: db}
}

// Save upserts the position for a content entry. Incomplete records for
// the same position are updated in place; completion replaces them.
func (s *LocalStore) Save(ctx context.Context, record Record) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	row := toRow(record)

	if !row.Completed {
		var existing database.WatchProgress
		err := s.db.WithContext(ctx).
			Where("content_id = ? AND season = ? AND episode = ? AND completed = false",
				row.ContentID, row.Season, row.Episode).
			Order("watched_at DESC").
			First(&existing).Error

		if err == nil {
			existing.PositionSeconds = row.PositionSeconds
			existing.DurationSeconds = row.DurationSeconds
			existing.ProgressPercent = row.ProgressPercent
			existing.ProviderID = row.ProviderID
			existing.Language = row.Language
			existing.WatchedAt = time.Now()
			return s.db.WithContext(ctx).Save(&existing).Error
		}
	}

	if row.Completed {
		s.db.WithContext(ctx).
			Where("content_id = ? AND season = ? AND episode = ? AND completed = false",
				row.ContentID, row.Season, row.Episode).
			Delete(&database.WatchProgress{})
	}

	row.WatchedAt = time.Now()
	return s.db.WithContext(ctx).Create(&row).Error
}

// Load returns the latest record for the content position
func (s *LocalStore) Load(ctx context.Context, contentID string, season, episode int) (*Record, bool, error) {
	if s.db == nil {
		return nil, false, fmt.Errorf("database connection is nil")
	}

	var row database.WatchProgress
	err := s.db.WithContext(ctx).
		Where("content_id = ? AND season = ? AND episode = ?", contentID, season, episode).
		Order("watched_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	record := fromRow(row)
	return &record, true, nil
}

// Recent returns the latest records across all content, newest first
func (s *LocalStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	var rows []database.WatchProgress
	err := s.db.WithContext(ctx).
		Order("watched_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch history: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = fromRow(row)
	}
	return records, nil
}

// Delete removes every record for a content id
func (s *LocalStore) Delete(ctx context.Context, contentID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Delete(&database.WatchProgress{}).Error
}

// Cleanup removes incomplete records not touched in 30 days
func (s *LocalStore) Cleanup(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	cutoff := time.Now().AddDate(0, 0, -30)
	return s.db.WithContext(ctx).
		Where("completed = ? AND watched_at < ?", false, cutoff).
		Delete(&database.WatchProgress{}).Error
}

func toRow(record Record) database.WatchProgress {
	completed := record.Completed
	if !completed && record.Duration > 0 {
		completed = record.Position.Seconds()/record.Duration.Seconds() >= completionThreshold
	}
	return database.WatchProgress{
		ContentID:       record.ContentID,
		Title:           record.Title,
		MediaType:       record.MediaType,
		Season:          record.Season,
		Episode:         record.Episode,
		PositionSeconds: int(record.Position.Seconds()),
		DurationSeconds: int(record.Duration.Seconds()),
		ProgressPercent: record.Percent(),
		ProviderID:      record.ProviderID,
		Language:        record.Language,
		Completed:       completed,
	}
}

func fromRow(row database.WatchProgress) Record {
	return Record{
		ContentID:  row.ContentID,
		Title:      row.Title,
		MediaType:  row.MediaType,
		Season:     row.Season,
		Episode:    row.Episode,
		Position:   time.Duration(row.PositionSeconds) * time.Second,
		Duration:   time.Duration(row.DurationSeconds) * time.Second,
		ProviderID: row.ProviderID,
		Language:   row.Language,
		WatchedAt:  row.WatchedAt,
		Completed:  row.Completed,
	}
}
