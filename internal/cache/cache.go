// Package cache persists JSON values with optional expiry in a single file.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL is the expiry applied by SetDefault.
	DefaultTTL = 24 * time.Hour

	lockTimeout    = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// record is the on-disk form of one entry. Times are Unix seconds; a null expiry never expires.
type record struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt float64         `json:"created_at"`
	ExpiresAt *float64        `json:"expires_at"`
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && unixSeconds(now) > *r.ExpiresAt
}

// FileCache is a JSON key/value store in one file. Every write rewrites the whole file through
// a temporary file and a rename. Writers are serialised in-process by a mutex and across
// processes by an advisory lock on path+".lock"; readers do not lock, so the last writer wins.
type FileCache struct {
	name       string
	path       string
	defaultTTL time.Duration
	logger     *logrus.Logger
	now        func() time.Time

	mu sync.Mutex
}

// New creates a cache stored at path. name labels metrics and logs.
func New(name, path string, defaultTTL time.Duration, logger *logrus.Logger) *FileCache {
	return &FileCache{
		name:       name,
		path:       path,
		defaultTTL: defaultTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Path returns the store location.
func (c *FileCache) Path() string {
	return c.path
}

// Get returns the raw JSON value for key. Expired entries are removed and reported as missing.
func (c *FileCache) Get(key string) (json.RawMessage, bool) {
	store := c.load()
	rec, ok := store[key]
	if !ok {
		telemetry.RecordCacheOperation(context.Background(), c.name, "get", false)
		return nil, false
	}

	if rec.expired(c.now()) {
		if err := c.Delete(key); err != nil {
			c.logger.WithError(err).WithField("key", telemetry.SanitiseCacheKey(key)).Debug("Failed to evict expired cache entry")
		}
		telemetry.RecordCacheOperation(context.Background(), c.name, "get", false)
		return nil, false
	}

	telemetry.RecordCacheOperation(context.Background(), c.name, "get", true)
	return rec.Value, true
}

// GetAs decodes the value for key into T. A value that does not decode counts as a miss.
func GetAs[T any](c *FileCache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.WithError(err).WithField("key", telemetry.SanitiseCacheKey(key)).Debug("Cached value has unexpected shape")
		var zero T
		return zero, false
	}
	return out, true
}

// Set stores value under key. A ttl of zero or less never expires.
func (c *FileCache) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	now := c.now()
	rec := record{Value: raw, CreatedAt: unixSeconds(now)}
	if ttl > 0 {
		exp := unixSeconds(now.Add(ttl))
		rec.ExpiresAt = &exp
	}

	err = c.update(func(store map[string]record) bool {
		store[key] = rec
		return true
	})
	telemetry.RecordCacheOperation(context.Background(), c.name, "set", err == nil)
	return err
}

// SetDefault stores value with the cache's default TTL.
func (c *FileCache) SetDefault(key string, value any) error {
	return c.Set(key, value, c.defaultTTL)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *FileCache) Delete(key string) error {
	return c.update(func(store map[string]record) bool {
		if _, ok := store[key]; !ok {
			return false
		}
		delete(store, key)
		return true
	})
}

// Purge removes every expired entry and returns how many were dropped.
func (c *FileCache) Purge() (int, error) {
	removed := 0
	now := c.now()
	err := c.update(func(store map[string]record) bool {
		for k, rec := range store {
			if rec.expired(now) {
				delete(store, k)
				removed++
			}
		}
		return removed > 0
	})
	return removed, err
}

// update applies fn to a fresh copy of the store under both locks and saves it when fn reports a change.
func (c *FileCache) update(fn func(store map[string]record) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	fileLock := flock.New(c.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	if !locked {
		return errors.New("could not acquire cache lock")
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			c.logger.WithError(err).Warn("Failed to release cache lock")
		}
	}()

	store := c.load()
	if !fn(store) {
		return nil
	}
	return c.save(store)
}

// load reads the store; a missing or corrupt file yields an empty store.
func (c *FileCache) load() map[string]record {
	store := make(map[string]record)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.WithError(err).WithField("path", c.path).Warn("Failed to read cache file, starting empty")
		}
		return store
	}

	if err := json.Unmarshal(data, &store); err != nil {
		c.logger.WithError(err).WithField("path", c.path).Warn("Cache file is corrupt, starting empty")
		return make(map[string]record)
	}
	return store
}

func (c *FileCache) save(store map[string]record) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			c.logger.WithError(rmErr).Debug("Failed to remove temporary cache file")
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return math.Round(float64(t.UnixNano())/1e6) / 1e3
}
