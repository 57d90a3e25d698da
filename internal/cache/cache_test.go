package cache

import (
	"testing"
	"time"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	_ = cache.Set("key1", []byte("one"))
	_ = cache.Set("key2", []byte("two"))

	got, found, err := cache.Get("key1")
	if err != nil || !found {
		t.Fatalf("Get(key1) = %v, %v, want found", found, err)
	}
	if string(got) != "one" {
		t.Errorf("Get(key1) = %q, want one", got)
	}

	// key2 is now the least recently used
	_ = cache.Set("key3", []byte("three"))

	if _, found, _ := cache.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	if _, found, _ := cache.Get("key1"); !found {
		t.Error("key1 should survive eviction")
	}
}

func TestLRUOverwrite(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	_ = cache.Set("key1", []byte("old"))
	_ = cache.Set("key1", []byte("new"))

	got, _, _ := cache.Get("key1")
	if string(got) != "new" {
		t.Errorf("Get(key1) = %q, want new", got)
	}
	if stats := cache.Stats(); stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestLRUExpiration(t *testing.T) {
	cache := NewLRUCache(10, 10*time.Millisecond)

	_ = cache.Set("key1", []byte("x"))

	time.Sleep(20 * time.Millisecond)

	_, found, _ := cache.Get("key1")
	if found {
		t.Error("key1 should be expired")
	}
}

func TestLRUNoTTL(t *testing.T) {
	cache := NewLRUCache(10, 0)

	_ = cache.Set("key1", []byte("x"))
	time.Sleep(5 * time.Millisecond)

	if _, found, _ := cache.Get("key1"); !found {
		t.Error("zero ttl should never expire")
	}
}

func TestLRUClear(t *testing.T) {
	cache := NewLRUCache(10, time.Hour)

	_ = cache.Set("key1", []byte("1"))
	_ = cache.Set("key2", []byte("2"))

	_ = cache.Clear()

	stats := cache.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries after Clear() = %d, want 0", stats.Entries)
	}
}

func TestLRUStats(t *testing.T) {
	cache := NewLRUCache(10, time.Hour)

	_ = cache.Set("key1", []byte("test"))
	_, _, _ = cache.Get("key1")        // hit
	_, _, _ = cache.Get("key1")        // hit
	_, _, _ = cache.Get("nonexistent") // miss

	stats := cache.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}

	if setErr := cache.Set("key1", []byte("rules: []")); setErr != nil {
		t.Fatalf("Set() error = %v", setErr)
	}

	got, found, getErr := cache.Get("key1")
	if getErr != nil || !found {
		t.Fatalf("Get() = %v, %v, want found", found, getErr)
	}
	if string(got) != "rules: []" {
		t.Errorf("Get() = %q", got)
	}

	if _, found, _ := cache.Get("missing"); found {
		t.Error("missing key should not be found")
	}
}

func TestFileCacheExpiration(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}

	now := time.Now()
	cache.now = func() time.Time { return now }
	_ = cache.Set("key1", []byte("test"))

	cache.now = func() time.Time { return now.Add(2 * time.Hour) }

	if _, found, _ := cache.Get("key1"); found {
		t.Error("key1 should be expired")
	}

	stale, ok := cache.Stale("key1")
	if !ok || string(stale) != "test" {
		t.Errorf("Stale() = %q, %v, want expired payload", stale, ok)
	}

	if err := cache.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, ok := cache.Stale("key1"); ok {
		t.Error("Cleanup should remove expired entries")
	}
}

func TestFileCacheClear(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}

	_ = cache.Set("key1", []byte("1"))
	_ = cache.Set("key2", []byte("2"))

	_ = cache.Clear()

	stats := cache.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries after Clear() = %d, want 0", stats.Entries)
	}
}

func TestKeyFor(t *testing.T) {
	key1 := KeyFor("https://example.com/rules.yaml")
	key2 := KeyFor("https://example.com/rules.yaml")
	key3 := KeyFor("https://example.com/other.yaml")

	if key1 != key2 {
		t.Error("same source should have same key")
	}
	if key1 == key3 {
		t.Error("different sources should have different keys")
	}

	// SHA-256 hex
	if len(key1) != 64 {
		t.Errorf("Key length = %d, want 64", len(key1))
	}
}
