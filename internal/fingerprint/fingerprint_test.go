package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyStable(t *testing.T) {
	mtime := time.Unix(1700000000, 123)
	a := CacheKey("/c/Lesson 1.mp4", 1024, mtime)
	b := CacheKey("/c/Lesson 1.mp4", 1024, mtime)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestCacheKeyChangesWithIdentity(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	base := CacheKey("/c/a.mp4", 10, mtime)

	assert.NotEqual(t, base, CacheKey("/c/b.mp4", 10, mtime))
	assert.NotEqual(t, base, CacheKey("/c/a.mp4", 11, mtime))
	assert.NotEqual(t, base, CacheKey("/c/a.mp4", 10, mtime.Add(time.Second)))
}

func TestFromInfoAndUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, CacheKey(path, 3, info.ModTime()), FromInfo(path, info))
	assert.NotEqual(t, FromInfo(path, info), FromInfo(path, nil))

	assert.True(t, Unchanged(info, 3, info.ModTime().UnixNano()))
	assert.False(t, Unchanged(info, 4, info.ModTime().UnixNano()))
	assert.False(t, Unchanged(info, 3, info.ModTime().UnixNano()+1))
	assert.False(t, Unchanged(nil, 3, 0))
}
