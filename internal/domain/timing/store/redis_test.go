package store

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	s, err := NewRedis(Config{
		Redis: &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close(ctx)
	})

	blob := []byte(`{"pause":0.5,"entries":[{"verse":1,"start":0,"end":2}]}`)
	if err := s.Save(ctx, "psalm_23_web_aria", blob); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := s.Load(ctx, "psalm_23_web_aria")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("blob mismatch: %s", got)
	}

	keys, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "psalm_23_web_aria" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := s.Remove(ctx, "psalm_23_web_aria"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := s.Load(ctx, "psalm_23_web_aria"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatalf("expected error for missing redis config")
	}
}
