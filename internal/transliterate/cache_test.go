package transliterate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("amma", "spoken", 8)
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
	if a != CacheKey("amma", "spoken", 8) {
		t.Error("key not deterministic")
	}
	for _, other := range []string{
		CacheKey("amma", "formal", 8),
		CacheKey("amma", "spoken", 7),
		CacheKey("ammas", "spoken", 8),
	} {
		if other == a {
			t.Error("distinct queries share a key")
		}
	}
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)
	if _, err := c.Load(context.Background(), "k", func() ([]Suggestion, error) {
		return []Suggestion{{Word: "அ", Ta: "அ", Score: 1}}, nil
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry missing right after Load")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("entry outlived its TTL")
	}
}

func TestCache_LoadHonoursCallerContext(t *testing.T) {
	c := NewCache(10, time.Minute)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Load(ctx, "k", func() ([]Suggestion, error) {
		<-release
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}
