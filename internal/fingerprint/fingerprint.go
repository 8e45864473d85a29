// Package fingerprint derives the content-identity key of a video file from
// its path, size and modification time. The key addresses cached thumbnails:
// a file that is rewritten in place gets a new key and therefore fresh images.
package fingerprint

import (
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CacheKey returns a 16 hex digit key for (path, size, mtime).
func CacheKey(path string, size int64, mtime time.Time) string {
	return hashKey(path + "_" + strconv.FormatInt(size, 10) + "_" + strconv.FormatInt(mtime.UnixNano(), 10))
}

// FromInfo is CacheKey over a stat result. A nil info yields a key over the
// path alone, which is stable but never invalidated by content changes.
func FromInfo(path string, info fs.FileInfo) string {
	if info == nil {
		return hashKey(path)
	}
	return CacheKey(path, info.Size(), info.ModTime())
}

// Unchanged reports whether a file still has the size and mtime recorded for
// it. mtime is compared in unix nanoseconds, the unit stored in the catalog.
func Unchanged(info fs.FileInfo, size, mtimeNanos int64) bool {
	return info != nil && info.Size() == size && info.ModTime().UnixNano() == mtimeNanos
}

func hashKey(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
