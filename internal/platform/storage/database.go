package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open initialises the SQLite database under dir and migrates the
// narration models. Callers own the returned handle; there is no
// package-level instance.
func Open(dir string) (*gorm.DB, error) {
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, "versecast.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&CacheRecord{}, &VoicePreference{}, &TimingRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// CacheRecord is the durable index entry for one cached audio file.
type CacheRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Key          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	Path         string    `gorm:"not null"                               json:"path"`
	Size         int64     `gorm:"not null"                               json:"size"`
	Book         string    `gorm:"index"                                  json:"book,omitempty"`
	Chapter      int       `                                              json:"chapter,omitempty"`
	Translation  string    `                                              json:"translation,omitempty"`
	Voice        string    `                                              json:"voice,omitempty"`
	CreatedAt    time.Time `gorm:"index"                                  json:"created_at"`
	LastAccessAt time.Time `gorm:"index"                                  json:"last_access_at"`
}

// VoicePreference records the voice chosen for a book. AutoAssigned
// preferences may be refreshed when global defaults change; user picks
// are left alone.
type VoicePreference struct {
	ID           uint      `gorm:"primaryKey"`
	Book         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"book"`
	Voice        string    `gorm:"not null"                              json:"voice"`
	AutoAssigned bool      `gorm:"not null"                              json:"auto_assigned"`
	UpdatedAt    time.Time `                                             json:"updated_at"`
}

// TimingRecord persists an exported verse timing blob for a chapter key.
type TimingRecord struct {
	ID        uint           `gorm:"primaryKey"`
	Key       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	Blob      datatypes.JSON `gorm:"not null"                               json:"blob"`
	CreatedAt time.Time      `                                              json:"created_at"`
	UpdatedAt time.Time      `                                              json:"updated_at"`
}
