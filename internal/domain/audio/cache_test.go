package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"versecast/internal/platform/storage"
)

func newTestCache(t *testing.T, ceiling int64) *Cache {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	cache, err := NewCache(Options{
		Dir:          filepath.Join(dir, "audio"),
		CeilingBytes: ceiling,
		DB:           db,
	})
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}
	return cache
}

func TestCachePutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t, 0)

	payload := []byte("fake-mp3-bytes")
	path, err := cache.Put("john_3_web_andrew", payload, Metadata{Book: "John", Chapter: 3, Voice: "andrew", Format: "mp3"})
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, ok, err := cache.Get("john_3_web_andrew")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || got != path {
		t.Fatalf("expected hit at %s, got %s ok=%v", path, got, ok)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("cached bytes differ from written bytes")
	}

	if !cache.Contains("john_3_web_andrew") {
		t.Fatalf("Contains should report the stored key")
	}
}

func TestCacheRemoveIsIdempotent(t *testing.T) {
	cache := newTestCache(t, 0)

	if _, err := cache.Put("k", []byte("data"), Metadata{Format: "mp3"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := cache.Remove("k"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, ok, _ := cache.Get("k"); ok {
		t.Fatalf("expected miss after removal")
	}
	if err := cache.Remove("k"); err != nil {
		t.Fatalf("second Remove should be a no-op, got %v", err)
	}
	if err := cache.Remove("never-existed"); err != nil {
		t.Fatalf("removing absent key should not error, got %v", err)
	}
}

func TestCacheEvictionHoldsCeiling(t *testing.T) {
	// Ceiling fits roughly two 100-byte entries.
	cache := newTestCache(t, 250)
	payload := make([]byte, 100)

	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("chapter-%d", i)
		if _, err := cache.Put(key, payload, Metadata{Format: "mp3"}); err != nil {
			t.Fatalf("Put %s error: %v", key, err)
		}
		total, err := cache.TotalSize()
		if err != nil {
			t.Fatalf("TotalSize error: %v", err)
		}
		if total > 250 {
			t.Fatalf("ceiling violated after put %d: total=%d", i, total)
		}
	}

	// The most recent entry must have survived its own eviction pass.
	if !cache.Contains("chapter-5") {
		t.Fatalf("just-written entry was evicted")
	}
	// The oldest entries must be gone.
	if cache.Contains("chapter-0") {
		t.Fatalf("oldest entry should have been evicted")
	}
}

func TestCacheOversizedSinglePutSucceeds(t *testing.T) {
	cache := newTestCache(t, 50)
	big := make([]byte, 200)

	if _, err := cache.Put("huge", big, Metadata{Format: "mp3"}); err != nil {
		t.Fatalf("oversized Put should still succeed: %v", err)
	}
	if !cache.Contains("huge") {
		t.Fatalf("oversized entry must not evict itself")
	}
}

func TestCacheListNewestFirst(t *testing.T) {
	cache := newTestCache(t, 0)

	for _, key := range []string{"a", "b", "c"} {
		if _, err := cache.Put(key, []byte("x"), Metadata{Format: "mp3"}); err != nil {
			t.Fatalf("Put %s error: %v", key, err)
		}
	}

	entries, err := cache.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatalf("entries not newest-first: %v", entries)
		}
	}
}

func TestCacheClear(t *testing.T) {
	cache := newTestCache(t, 0)
	if _, err := cache.Put("a", []byte("x"), Metadata{Format: "mp3"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	total, err := cache.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize error: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected empty cache, total=%d", total)
	}
}

func TestCacheConcurrentPutGetNeverTorn(t *testing.T) {
	cache := newTestCache(t, 0)

	old := bytes.Repeat([]byte{0xAA}, 4096)
	new_ := bytes.Repeat([]byte{0xBB}, 4096)
	if _, err := cache.Put("shared", old, Metadata{Format: "mp3"}); err != nil {
		t.Fatalf("seed Put error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := cache.Put("shared", new_, Metadata{Format: "mp3"}); err != nil {
				t.Errorf("Put error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			path, ok, err := cache.Get("shared")
			if err != nil {
				t.Errorf("Get error: %v", err)
				return
			}
			if !ok {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				// The file may be mid-rename; a miss is fine, a partial read is not.
				continue
			}
			if !bytes.Equal(data, old) && !bytes.Equal(data, new_) {
				t.Errorf("torn read: %d bytes, first=%x", len(data), data[0])
				return
			}
		}
	}()

	wg.Wait()
}

func TestPutFormatChangeLeavesNoOrphanFile(t *testing.T) {
	cache := newTestCache(t, 0)

	first, err := cache.Put("k", []byte("mp3-bytes"), Metadata{Format: "mp3"})
	if err != nil {
		t.Fatalf("Put mp3 error: %v", err)
	}
	second, err := cache.Put("k", []byte("wav-bytes!"), Metadata{Format: "wav"})
	if err != nil {
		t.Fatalf("Put wav error: %v", err)
	}
	if first == second {
		t.Fatalf("format change should move the entry to a new filename")
	}

	if _, err := os.Stat(first); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("superseded file %s still on disk (stat err %v)", first, err)
	}
	if _, err := os.Stat(second); err != nil {
		t.Fatalf("current file missing: %v", err)
	}

	total, err := cache.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize error: %v", err)
	}
	if want := int64(len("wav-bytes!")); total != want {
		t.Fatalf("total %d should count only the current file (%d)", total, want)
	}
}

func TestEvictionBreaksAccessTimeTies(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	cache, err := NewCache(Options{
		Dir:          filepath.Join(dir, "audio"),
		CeilingBytes: 350,
		DB:           db,
	})
	if err != nil {
		t.Fatalf("NewCache error: %v", err)
	}

	payload := make([]byte, 100)
	for _, key := range []string{"first", "second", "third"} {
		if _, err := cache.Put(key, payload, Metadata{Format: "mp3"}); err != nil {
			t.Fatalf("Put %s error: %v", key, err)
		}
	}

	// Collapse all access times onto one instant so only the tiebreaker
	// decides the victim.
	tied := time.Now().Add(-time.Hour)
	if err := db.Model(&storage.CacheRecord{}).
		Where("1 = 1").
		Update("last_access_at", tied).Error; err != nil {
		t.Fatalf("equalize access times: %v", err)
	}

	if _, err := cache.Put("fourth", payload, Metadata{Format: "mp3"}); err != nil {
		t.Fatalf("Put fourth error: %v", err)
	}

	if cache.Contains("first") {
		t.Fatalf("oldest insertion should lose the tie")
	}
	for _, key := range []string{"second", "third", "fourth"} {
		if !cache.Contains(key) {
			t.Fatalf("entry %s should have survived", key)
		}
	}
}
