package sqlite

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHashPrompt(t *testing.T) {
	h1 := HashPrompt("Extract stock tickers from 3 posts")
	h2 := HashPrompt("Extract stock tickers from 3 posts")
	h3 := HashPrompt("Extract stock tickers from 4 posts")

	if h1 != h2 {
		t.Error("same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("different prompt should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected hex sha256, got %q", h1)
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	hash := HashPrompt("prompt")

	if err := c.Put(hash, "vendor/model:free", []byte(`{"tickers":{"AAPL":{"mentions":2}}}`)); err != nil {
		t.Fatal(err)
	}

	entry, ok := c.Get(hash)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(entry.Response) != `{"tickers":{"AAPL":{"mentions":2}}}` {
		t.Errorf("unexpected response: %s", entry.Response)
	}
	if entry.Model != "vendor/model:free" {
		t.Errorf("expected producing model, got %q", entry.Model)
	}
	if entry.TTL != time.Hour {
		t.Errorf("expected 1h ttl, got %v", entry.TTL)
	}

	if _, ok := c.Get(HashPrompt("other prompt")); ok {
		t.Error("expected cache miss for different prompt")
	}
}

func TestPutReplaces(t *testing.T) {
	c := newTestCache(t, time.Hour)
	_ = c.Put("h", "m1", []byte("first"))
	_ = c.Put("h", "m2", []byte("second"))

	entry, ok := c.Get("h")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Model != "m2" || string(entry.Response) != "second" {
		t.Errorf("expected replaced entry, got %s %s", entry.Model, entry.Response)
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, 1*time.Millisecond)
	hash := "testhash"

	if err := c.Put(hash, "m", []byte("data")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(hash); ok {
		t.Error("expected cache miss after TTL expiration")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("h1", "m", []byte("data"))
	c.Get("h1") // hit
	c.Get("h2") // miss

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("h1", "m", []byte("data"))
	_ = c.Put("h2", "m", []byte("data"))

	if err := c.Clear(true); err != nil {
		t.Fatal(err)
	}
	stats, _ := c.Stats()
	if stats.Entries != 2 {
		t.Errorf("expiredOnly should keep fresh entries, got %d", stats.Entries)
	}

	if err := c.Clear(false); err != nil {
		t.Fatal(err)
	}

	stats, _ = c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
