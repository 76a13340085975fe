package database

import (
	"time"

	"gorm.io/gorm"
)

// WatchProgress stores the last known playback position for a media item
type WatchProgress struct {
	ID              uint      `gorm:"primaryKey"`
	ContentID       string    `gorm:"not null;index"`
	Title           string    `gorm:"not null"`
	MediaType       string    `gorm:"not null;index"` // movie, series, audiobook
	Season          int       `gorm:"default:0"`
	Episode         int       `gorm:"default:0"`
	PositionSeconds int       `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	ProgressPercent float64   `gorm:"not null"`
	ProviderID      string    `gorm:"default:''"`
	Language        string    `gorm:"default:''"`
	WatchedAt       time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
	Completed       bool      `gorm:"default:false"`
}

// TableName overrides the table name
func (WatchProgress) TableName() string {
	return "watch_progress"
}

// Bookmark is a user-created position marker within audiobook content
type Bookmark struct {
	ID              uint      `gorm:"primaryKey"`
	ContentID       string    `gorm:"not null;index"`
	FileIndex       int       `gorm:"not null"`
	FileID          string    `gorm:"not null"`
	Label           string    `gorm:"not null"`
	PositionSeconds int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Bookmark) TableName() string {
	return "bookmarks"
}

// Setting is a key-value store for simple client-side preferences
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&WatchProgress{},
		&Bookmark{},
		&Setting{},
	)
}
