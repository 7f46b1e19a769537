package store

import (
	"context"
	"errors"
	"fmt"

	"versecast/internal/platform/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite constructs a timing store over an already-migrated database.
func NewSQLite(db *gorm.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Save(ctx context.Context, key string, blob []byte) error {
	record := storage.TimingRecord{
		Key:  key,
		Blob: datatypes.JSON(blob),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save timings for %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var rec storage.TimingRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load timings for %s: %w", key, err)
	}
	return []byte(rec.Blob), nil
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&storage.TimingRecord{}, "key = ?", key).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&storage.TimingRecord{}).
		Order("created_at ASC").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list timing keys: %w", err)
	}
	return keys, nil
}

func (s *sqliteStore) Close(context.Context) error {
	// The database handle is owned by the caller.
	return nil
}
