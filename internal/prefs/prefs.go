// Package prefs stores simple client-side preferences behind a small
// repository interface so the engine can be tested with an in-memory
// implementation.
package prefs

import (
	"fmt"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/vesperhq/vesper/internal/database"
)

// Well-known preference keys
const (
	KeyLastProvider = "playback.last_provider"
	KeyLastLanguage = "playback.last_language"
	KeyPlaybackRate = "playback.rate"
)

// Repository is a key-value preference store
type Repository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store wraps a Repository with typed accessors and safe defaults
type Store struct {
	repo Repository

	defaultLanguage string
}

// NewStore creates a preference store. defaultLanguage is used when no
// language preference has been written yet.
func NewStore(repo Repository, defaultLanguage string) *Store {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Store{repo: repo, defaultLanguage: defaultLanguage}
}

// LastProvider returns the last-used provider id, or "" when unset
func (s *Store) LastProvider() string {
	v, ok, err := s.repo.Get(KeyLastProvider)
	if err != nil || !ok {
		return ""
	}
	return v
}

// SetLastProvider records the last-used provider id
func (s *Store) SetLastProvider(id string) error {
	return s.repo.Set(KeyLastProvider, id)
}

// LastLanguage returns the last-used language code, falling back to the
// configured default when unset
func (s *Store) LastLanguage() string {
	v, ok, err := s.repo.Get(KeyLastLanguage)
	if err != nil || !ok || v == "" {
		return s.defaultLanguage
	}
	return v
}

// SetLastLanguage records the last-used language code
func (s *Store) SetLastLanguage(code string) error {
	return s.repo.Set(KeyLastLanguage, code)
}

// PlaybackRate returns the stored playback rate, defaulting to 1.0
func (s *Store) PlaybackRate() float64 {
	v, ok, err := s.repo.Get(KeyPlaybackRate)
	if err != nil || !ok {
		return 1.0
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || rate <= 0 {
		return 1.0
	}
	return rate
}

// SetPlaybackRate records the playback rate
func (s *Store) SetPlaybackRate(rate float64) error {
	return s.repo.Set(KeyPlaybackRate, strconv.FormatFloat(rate, 'f', -1, 64))
}

// DBRepository persists preferences in the settings table
type DBRepository struct {
	db *gorm.DB
}

// NewDBRepository creates a database-backed preference repository
func NewDBRepository(db *gorm.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Get reads a preference value
func (r *DBRepository) Get(key string) (string, bool, error) {
	if r.db == nil {
		return "", false, fmt.Errorf("database connection is nil")
	}

	var setting database.Setting
	err := r.db.First(&setting, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Set writes a preference value
func (r *DBRepository) Set(key, value string) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	setting := database.Setting{Key: key, Value: value}
	return r.db.Save(&setting).Error
}

// Delete removes a preference
func (r *DBRepository) Delete(key string) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return r.db.Delete(&database.Setting{}, "key = ?", key).Error
}

// MemoryRepository is an in-memory Repository for tests
type MemoryRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{values: make(map[string]string)}
}

// Get reads a preference value
func (r *MemoryRepository) Get(key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

// Set writes a preference value
func (r *MemoryRepository) Set(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

// Delete removes a preference
func (r *MemoryRepository) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}
