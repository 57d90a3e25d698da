package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// FileCache implements a file-based persistent cache. Expired entries are
// kept on disk until Cleanup so Stale can still serve them.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time

	hits   int64
	misses int64
}

type fileEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFileCache creates a new file-based cache.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &FileCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}, nil
}

func (c *FileCache) read(key string) (*fileEntry, error) {
	data, err := os.ReadFile(c.keyPath(key))
	if err != nil {
		return nil, err
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *FileCache) Get(key string) ([]byte, bool, error) {
	entry, err := c.read(key)
	if errors.Is(err, fs.ErrNotExist) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if c.now().After(entry.ExpiresAt) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return entry.Data, true, nil
}

// Stale returns an entry whether or not it has expired.
func (c *FileCache) Stale(key string) ([]byte, bool) {
	entry, err := c.read(key)
	if err != nil {
		return nil, false
	}
	return entry.Data, true
}

func (c *FileCache) Set(key string, data []byte) error {
	entry := fileEntry{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), raw, 0o600)
}

func (c *FileCache) Delete(key string) error {
	return os.Remove(c.keyPath(key))
}

func (c *FileCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(c.dir, entry.Name()))
		}
	}
	return nil
}

func (c *FileCache) Stats() Stats {
	entries, _ := os.ReadDir(c.dir)
	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: len(entries),
	}
}

func (c *FileCache) keyPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Cleanup removes expired entries.
func (c *FileCache) Cleanup() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var fe fileEntry
		if err := json.Unmarshal(data, &fe); err != nil {
			continue
		}

		if c.now().After(fe.ExpiresAt) {
			os.Remove(path)
		}
	}

	return nil
}
