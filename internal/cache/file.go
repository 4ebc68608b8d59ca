package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

const fileExt = ".json.zst"

// FileCache stores one compressed file per key under a directory.
type FileCache struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFile creates a file cache rooted at dir. An empty dir disables caching.
func NewFile(dir string) *FileCache {
	return &FileCache{dir: dir, now: time.Now}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get retrieves a cached result. Unreadable or expired entries are misses and
// are removed.
func (c *FileCache) Get(_ context.Context, key string) (*models.AuditResult, bool, error) {
	if c.dir == "" || !validKey(key) {
		return nil, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.cachePath(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache file: %w", err)
	}

	e, err := decode(data)
	if err != nil {
		slog.Warn("discarding unreadable cache entry", "path", path, "error", err)
		_ = os.Remove(path)
		return nil, false, nil
	}
	if e.expired(c.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Result, true, nil
}

// Set stores a result in the cache.
func (c *FileCache) Set(_ context.Context, key string, result *models.AuditResult, ttl time.Duration) error {
	if c.dir == "" {
		return nil
	}
	if !validKey(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := encode(newEntry(key, result, ttl, c.now()))
	if err != nil {
		return err
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.cachePath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached results. It refuses to touch a directory holding
// anything other than cache files.
func (c *FileCache) Clear(context.Context) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if !strings.HasSuffix(entry.Name(), fileExt) && !strings.HasPrefix(entry.Name(), ".tmp-") {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *FileCache) cachePath(key string) string {
	return filepath.Join(c.dir, key+fileExt)
}

// validKey accepts only hex digests so keys cannot escape the directory.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
