package kev

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// Cache provides local file-based caching for catalog downloads.
type Cache struct {
	Dir string
	TTL time.Duration
}

// DefaultTTL is the default cache time-to-live.
const DefaultTTL = 24 * time.Hour

// NewCache creates a cache rooted at dir, falling back to
// ~/.cache/vulndeck when dir is empty.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(homeDir, ".cache", "vulndeck")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{Dir: dir, TTL: ttl}, nil
}

func (c *Cache) keyToFilename(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".json"
}

// Path returns the full path to the cache file for a key.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.Dir, c.keyToFilename(key))
}

// Get retrieves data from cache if it exists and is not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	path := c.Path(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.TTL {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data in the cache.
func (c *Cache) Set(key string, data []byte) error {
	return os.WriteFile(c.Path(key), data, 0644)
}
