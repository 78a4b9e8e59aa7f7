package cache

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	return New("test", filepath.Join(t.TempDir(), "nested", "cache.json"), DefaultTTL, quietLogger())
}

func TestSetGet_RoundTrip(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("ai", []string{"#AI", "#ML"}, time.Hour))

	got, ok := GetAs[[]string](c, "ai")
	require.True(t, ok)
	assert.Equal(t, []string{"#AI", "#ML"}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestGet_ExpiredEntryIsEvicted(t *testing.T) {
	c := newTestCache(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("short", "v", time.Minute))
	require.NoError(t, c.Set("forever", "v", 0))

	now = now.Add(2 * time.Minute)

	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)

	// eviction was persisted
	data, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"short"`)
}

func TestOnDiskFormat(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", map[string]any{"a": 1}, 10*time.Second))
	require.NoError(t, c.Set("n", 1, -1))

	data, err := os.ReadFile(c.Path())
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, map[string]any{"a": float64(1)}, raw["k"]["value"])
	assert.Equal(t, float64(1700000000), raw["k"]["created_at"])
	assert.Equal(t, float64(1700000010), raw["k"]["expires_at"])

	exp, present := raw["n"]["expires_at"]
	assert.True(t, present)
	assert.Nil(t, exp)

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Dir(c.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(c.Path()), 0o700))
	require.NoError(t, os.WriteFile(c.Path(), []byte("{not json"), 0o600))

	_, ok := c.Get("anything")
	assert.False(t, ok)

	require.NoError(t, c.SetDefault("k", "v"))
	got, ok := GetAs[string](c, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestDeleteAndPurge(t *testing.T) {
	c := newTestCache(t)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("a", 1, time.Second))
	require.NoError(t, c.Set("b", 2, time.Hour))
	require.NoError(t, c.Set("c", 3, 0))

	require.NoError(t, c.Delete("c"))
	require.NoError(t, c.Delete("does-not-exist"))

	now = now.Add(time.Minute)
	removed, err := c.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.False(t, ok)
}

func TestGetAs_WrongShapeIsMiss(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("k", "a string", 0))

	_, ok := GetAs[[]int](c, "k")
	assert.False(t, ok)
}

func TestConcurrentWriters(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Set(string(rune('a'+i)), i, 0))
		}()
	}
	wg.Wait()

	for i := range 20 {
		v, ok := GetAs[int](c, string(rune('a'+i)))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}
