package audiobook

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vesperhq/vesper/internal/database"
)

// Bookmark is a saved listening position
type Bookmark struct {
	ID        uint
	ContentID string
	FileIndex int
	FileID    string
	Label     string
	Position  time.Duration
	CreatedAt time.Time
}

// Bookmarks manages saved positions for audiobook content
type Bookmarks struct {
	db *gorm.DB
}

// NewBookmarks creates a bookmark service
func NewBookmarks(db *gorm.DB) *Bookmarks {
	return &Bookmarks{db: db}
}

// Add saves a bookmark. An empty label gets a timestamp label.
func (b *Bookmarks) Add(ctx context.Context, contentID string, fileIndex int, fileID, label string, position time.Duration) (*Bookmark, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if contentID == "" {
		return nil, fmt.Errorf("content id is required")
	}
	if label == "" {
		label = fmt.Sprintf("Bookmark at %s", formatPosition(position))
	}

	row := database.Bookmark{
		ContentID:       contentID,
		FileIndex:       fileIndex,
		FileID:          fileID,
		Label:           label,
		PositionSeconds: int(position.Seconds()),
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return fromBookmarkRow(row), nil
}

// List returns the bookmarks for a content id, oldest first
func (b *Bookmarks) List(ctx context.Context, contentID string) ([]Bookmark, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var rows []database.Bookmark
	err := b.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookmarks: %w", err)
	}

	bookmarks := make([]Bookmark, len(rows))
	for i, row := range rows {
		bookmarks[i] = *fromBookmarkRow(row)
	}
	return bookmarks, nil
}

// Rename changes a bookmark's label
func (b *Bookmarks) Rename(ctx context.Context, id uint, label string) error {
	if b.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if label == "" {
		return fmt.Errorf("label is required")
	}
	return b.db.WithContext(ctx).
		Model(&database.Bookmark{}).
		Where("id = ?", id).
		Update("label", label).Error
}

// Delete removes a bookmark
func (b *Bookmarks) Delete(ctx context.Context, id uint) error {
	if b.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return b.db.WithContext(ctx).Delete(&database.Bookmark{}, id).Error
}

func fromBookmarkRow(row database.Bookmark) *Bookmark {
	return &Bookmark{
		ID:        row.ID,
		ContentID: row.ContentID,
		FileIndex: row.FileIndex,
		FileID:    row.FileID,
		Label:     row.Label,
		Position:  time.Duration(row.PositionSeconds) * time.Second,
		CreatedAt: row.CreatedAt,
	}
}

func formatPosition(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
