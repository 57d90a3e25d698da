// Package cache keeps fetched rule files so repeated runs do not refetch
// them, and so a run can fall back to the last copy when a host is down.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Cache stores raw payloads by key.
type Cache interface {
	// Get returns an unexpired entry.
	Get(key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(key string, data []byte) error

	// Clear removes all cached entries.
	Clear() error
}

// Stats contains cache statistics.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// KeyFor derives a file-safe key from a source such as a URL.
func KeyFor(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
