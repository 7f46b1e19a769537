package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"versecast/internal/platform/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxFilenameLength = 200

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

// Metadata describes the chapter identity attached to a cache entry.
type Metadata struct {
	Book        string
	Chapter     int
	Translation string
	Voice       string
	Format      string
}

// Entry is a read-only view of one cache index row.
type Entry struct {
	Key          string    `json:"key"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Book         string    `json:"book,omitempty"`
	Chapter      int       `json:"chapter,omitempty"`
	Voice        string    `json:"voice,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
}

// Cache stores synthesized chapter audio on disk with a SQLite-backed
// index and oldest-accessed-first eviction against a size ceiling.
type Cache struct {
	dir     string
	ceiling int64
	db      *gorm.DB
	logger  *slog.Logger

	mu sync.Mutex // serializes all mutations; reads touch the index under the same lock
}

// Options configures a Cache.
type Options struct {
	Dir          string
	CeilingBytes int64
	DB           *gorm.DB
	Logger       *slog.Logger
}

// NewCache prepares the cache directory and reconciles the index
// against files actually present on disk.
func NewCache(opts Options) (*Cache, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("cache requires a database handle")
	}
	dir := opts.Dir
	if dir == "" {
		dir = "data/audio_cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c := &Cache{
		dir:     dir,
		ceiling: opts.CeilingBytes,
		db:      opts.DB,
		logger:  opts.Logger,
	}
	if err := c.reconcile(); err != nil {
		return nil, err
	}
	return c, nil
}

// reconcile drops index rows whose backing file has vanished.
func (c *Cache) reconcile() error {
	var records []storage.CacheRecord
	if err := c.db.Find(&records).Error; err != nil {
		return fmt.Errorf("load cache index: %w", err)
	}
	for _, rec := range records {
		if _, err := os.Stat(rec.Path); errors.Is(err, os.ErrNotExist) {
			if err := c.db.Delete(&storage.CacheRecord{}, "key = ?", rec.Key).Error; err != nil {
				return fmt.Errorf("drop stale index row %s: %w", rec.Key, err)
			}
		}
	}
	return nil
}

// Put writes bytes durably under a name derived from key, updates the
// index, and runs the eviction check. The entry just written is never
// evicted by its own Put.
func (c *Cache) Put(key string, data []byte, meta Metadata) (string, error) {
	if key == "" {
		return "", fmt.Errorf("cache key cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to cache empty audio")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, filenameFor(key, meta.Format))

	var prev storage.CacheRecord
	prevErr := c.db.First(&prev, "key = ?", key).Error

	// Write-then-rename keeps concurrent readers off half-written files.
	tmp, err := os.CreateTemp(c.dir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publish cache file: %w", err)
	}

	now := time.Now()
	record := storage.CacheRecord{
		Key:          key,
		Path:         path,
		Size:         int64(len(data)),
		Book:         meta.Book,
		Chapter:      meta.Chapter,
		Translation:  meta.Translation,
		Voice:        meta.Voice,
		CreatedAt:    now,
		LastAccessAt: now,
	}
	err = c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"path", "size", "book", "chapter", "translation", "voice", "last_access_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return "", fmt.Errorf("index cache entry: %w", err)
	}

	// A format change moves the entry to a new filename; the superseded
	// file is unindexed and must not linger outside the ceiling's view.
	if prevErr == nil && prev.Path != path {
		if err := os.Remove(prev.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logWarn("remove superseded cache file", err)
		}
	}

	c.evictLocked(key)
	return path, nil
}

// Get returns the durable path for key if present, refreshing its
// last-access time. It never fetches remotely.
func (c *Cache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rec storage.CacheRecord
	err := c.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup cache entry: %w", err)
	}
	if _, err := os.Stat(rec.Path); errors.Is(err, os.ErrNotExist) {
		_ = c.db.Delete(&storage.CacheRecord{}, "key = ?", key).Error
		return "", false, nil
	}

	if err := c.db.Model(&storage.CacheRecord{}).
		Where("key = ?", key).
		Update("last_access_at", time.Now()).Error; err != nil {
		return "", false, fmt.Errorf("touch cache entry: %w", err)
	}
	return rec.Path, true, nil
}

// Contains reports key presence without touching last-access.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	if err := c.db.Model(&storage.CacheRecord{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// Remove deletes the durable bytes and index entry; absent keys are a no-op.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(key)
}

func (c *Cache) removeLocked(key string) error {
	var rec storage.CacheRecord
	err := c.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup cache entry: %w", err)
	}

	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	if err := c.db.Delete(&storage.CacheRecord{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("remove index entry: %w", err)
	}
	return nil
}

// TotalSize sums the sizes of all durable entries by stat-ing the
// files, so index drift never hides disk usage.
func (c *Cache) TotalSize() (int64, error) {
	var records []storage.CacheRecord
	if err := c.db.Find(&records).Error; err != nil {
		return 0, fmt.Errorf("load cache index: %w", err)
	}
	var total int64
	for _, rec := range records {
		info, err := os.Stat(rec.Path)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var records []storage.CacheRecord
	if err := c.db.Find(&records).Error; err != nil {
		return fmt.Errorf("load cache index: %w", err)
	}
	for _, rec := range records {
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache file %s: %w", rec.Path, err)
		}
	}
	if err := c.db.Where("1 = 1").Delete(&storage.CacheRecord{}).Error; err != nil {
		return fmt.Errorf("clear cache index: %w", err)
	}
	return nil
}

// ListEntries returns all entries newest-first by creation time.
func (c *Cache) ListEntries() ([]Entry, error) {
	var records []storage.CacheRecord
	if err := c.db.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list cache index: %w", err)
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{
			Key:          rec.Key,
			Path:         rec.Path,
			Size:         rec.Size,
			Book:         rec.Book,
			Chapter:      rec.Chapter,
			Voice:        rec.Voice,
			CreatedAt:    rec.CreatedAt,
			LastAccessAt: rec.LastAccessAt,
		})
	}
	return entries, nil
}

// evictLocked removes oldest-accessed entries one at a time until the
// cache fits under the ceiling. Failures are logged and non-fatal: the
// write that triggered eviction has already succeeded.
func (c *Cache) evictLocked(justWritten string) {
	if c.ceiling <= 0 {
		return
	}
	for {
		total, err := c.TotalSize()
		if err != nil {
			c.logWarn("eviction size check failed", err)
			return
		}
		if total <= c.ceiling {
			return
		}

		var victim storage.CacheRecord
		err = c.db.Where("key <> ?", justWritten).
			Order("last_access_at ASC, id ASC").
			First(&victim).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Only the just-written entry remains; it alone may exceed the ceiling.
			return
		}
		if err != nil {
			c.logWarn("eviction candidate lookup failed", err)
			return
		}
		if err := c.removeLocked(victim.Key); err != nil {
			c.logWarn("eviction remove failed", err)
			return
		}
		if c.logger != nil {
			c.logger.Info("evicted cache entry", "key", victim.Key, "size", victim.Size)
		}
	}
}

func (c *Cache) logWarn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, "error", err)
	}
}

// filenameFor derives a deterministic, filesystem-safe name from a key.
func filenameFor(key, format string) string {
	safe := unsafeFilenameChars.ReplaceAllString(key, "_")
	safe = strings.Trim(safe, "_. ")
	if len(safe) > maxFilenameLength {
		safe = safe[:maxFilenameLength]
	}
	if safe == "" {
		safe = "audio"
	}
	if format == "" {
		format = "wav"
	}
	return safe + "." + format
}
