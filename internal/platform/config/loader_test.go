package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoaderDefaultsWhenFileMissing(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).WithDotEnv(false)

	res, err := loader.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Path != "defaults" {
		t.Fatalf("expected defaults path marker, got %q", res.Path)
	}
	if res.Config.Narration.WordsPerMinute != 150 {
		t.Fatalf("unexpected default words per minute: %v", res.Config.Narration.WordsPerMinute)
	}
	if res.Config.Narration.BatchSize != 5 {
		t.Fatalf("unexpected default batch size: %v", res.Config.Narration.BatchSize)
	}
}

func TestLoaderReadsFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
log:
  log_level: debug
narration:
  words_per_minute: 170
  verse_pause: 1s
cache:
  ceiling_bytes: 1024
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VERSECAST_WEB_PORT", "9090")

	res, err := NewLoader(path).WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := res.Config
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log level from file, got %q", cfg.Log.Level)
	}
	if cfg.Narration.WordsPerMinute != 170 {
		t.Fatalf("expected wpm override, got %v", cfg.Narration.WordsPerMinute)
	}
	if cfg.Narration.VersePause != time.Second {
		t.Fatalf("expected verse pause 1s, got %v", cfg.Narration.VersePause)
	}
	if cfg.Cache.CeilingBytes != 1024 {
		t.Fatalf("expected cache ceiling from file, got %v", cfg.Cache.CeilingBytes)
	}
	if cfg.Web.Port != 9090 {
		t.Fatalf("expected env override for web port, got %d", cfg.Web.Port)
	}
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := NewLoader(path).WithDotEnv(false).Load(); err == nil {
		t.Fatalf("expected parse error for malformed yaml")
	}
}
