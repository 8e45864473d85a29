// Package preview renders evenly spaced JPEG thumbnails of a video and keeps
// them in a cache directory addressed by the video's cache key.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/workerpool"
)

// execCommand is a variable so tests can substitute a helper process.
var execCommand = exec.CommandContext

// defaultSampleDuration is assumed when the real duration is unknown.
const defaultSampleDuration = 60.0

type Config struct {
	FFmpegPath string
	OutputDir  string
	Width      int
	Height     int
	Count      int
	Quality    int
	Timeout    time.Duration
	// Workers caps the frames of one video rendered at once.
	Workers int
	// PoolSize is the number of ffmpeg processes shared by all videos.
	PoolSize   int
	Regenerate bool
	// Disabled skips rendering; cached images are still reused.
	Disabled bool
}

type Generator struct {
	cfg  Config
	pool *workerpool.Pool
	log  *zap.Logger
}

// Request describes one video. Existing is the thumbnail list stored in the
// catalog for this file, if any.
type Request struct {
	VideoPath string
	Duration  float64
	CacheKey  string
	Existing  []string
}

// Result lists the thumbnails in timestamp order. Failed frames are omitted.
type Result struct {
	Paths     []string
	Generated int
	Cached    int
	Failed    int
	Elapsed   time.Duration
}

// Primary is the first thumbnail, or "" if there are none.
func (r Result) Primary() string {
	if len(r.Paths) == 0 {
		return ""
	}
	return r.Paths[0]
}

func NewGenerator(cfg Config, log *zap.Logger) *Generator {
	cfg.Count = max(cfg.Count, 1)
	cfg.Workers = max(cfg.Workers, 1)
	cfg.PoolSize = max(cfg.PoolSize, cfg.Workers)
	return &Generator{
		cfg:  cfg,
		pool: workerpool.New(cfg.PoolSize),
		log:  log.Named("preview"),
	}
}

// Close stops the shared ffmpeg worker pool.
func (g *Generator) Close() {
	g.pool.Close()
}

// Generate returns the thumbnails for req, first reusing the stored list,
// then files already on disk, and only then rendering every frame again.
// Regenerate skips both reuse steps.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	n := g.cfg.Count

	if !g.cfg.Regenerate {
		if g.storedListValid(req.Existing, req.CacheKey) {
			return Result{Paths: req.Existing, Cached: n, Elapsed: time.Since(start)}
		}
		if paths, ok := g.onDisk(req.CacheKey); ok {
			return Result{Paths: paths, Cached: n, Elapsed: time.Since(start)}
		}
	}
	if g.cfg.Disabled {
		return Result{Elapsed: time.Since(start)}
	}

	g.removeStale(req.CacheKey)
	if err := os.MkdirAll(g.cfg.OutputDir, 0755); err != nil {
		g.log.Warn("create thumbnail dir failed", zap.String("dir", g.cfg.OutputDir), zap.Error(err))
		return Result{Failed: n, Elapsed: time.Since(start)}
	}

	timestamps := Timestamps(req.Duration, n)
	done := make([]bool, n)
	batch := g.pool.Batch(g.cfg.Workers)
	for i, ts := range timestamps {
		out := g.framePath(req.CacheKey, i)
		if err := batch.Go(ctx, func() {
			done[i] = g.extractFrame(ctx, req.VideoPath, ts, out)
		}); err != nil {
			break
		}
	}
	batch.Wait()

	res := Result{}
	for i, ok := range done {
		if ok {
			res.Paths = append(res.Paths, g.framePath(req.CacheKey, i))
			res.Generated++
		} else {
			res.Failed++
		}
	}
	res.Elapsed = time.Since(start)
	return res
}

// Timestamps spreads n sample points from 5% to 95% of duration.
func Timestamps(duration float64, n int) []float64 {
	if duration < 1 {
		duration = defaultSampleDuration
	}
	if n <= 0 {
		return nil
	}
	start, end := duration*0.05, duration*0.95
	interval := 0.0
	if n > 1 {
		interval = (end - start) / float64(n-1)
	}
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = start + interval*float64(i)
	}
	return ts
}

// storedListValid accepts the catalog's list only if it belongs to the
// current cache key, has exactly Count entries and every file exists.
func (g *Generator) storedListValid(paths []string, key string) bool {
	if key == "" || len(paths) != g.cfg.Count {
		return false
	}
	for _, p := range paths {
		if !strings.HasPrefix(filepath.Base(p), key+"_") || !exists(p) {
			return false
		}
	}
	return true
}

func (g *Generator) onDisk(key string) ([]string, bool) {
	if key == "" {
		return nil, false
	}
	paths := make([]string, g.cfg.Count)
	for i := range paths {
		paths[i] = g.framePath(key, i)
		if !exists(paths[i]) {
			return nil, false
		}
	}
	return paths, true
}

func (g *Generator) removeStale(key string) {
	if key == "" {
		return
	}
	matches, _ := filepath.Glob(filepath.Join(g.cfg.OutputDir, key+"_*.jpg"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.log.Debug("remove stale thumbnail", zap.String("path", m), zap.Error(err))
		}
	}
}

func (g *Generator) framePath(key string, i int) string {
	return filepath.Join(g.cfg.OutputDir, key+"_"+strconv.Itoa(i)+".jpg")
}

// extractFrame seeks before the input and decodes a single frame. The frame
// counts as rendered when the output file exists afterwards.
func (g *Generator) extractFrame(ctx context.Context, videoPath string, ts float64, out string) bool {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	w, h := g.cfg.Width, g.cfg.Height
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", w, h, w, h)
	cmd := execCommand(ctx, g.cfg.FFmpegPath,
		"-ss", fmt.Sprintf("%.2f", ts),
		"-i", videoPath,
		"-vf", filter,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(g.cfg.Quality),
		"-an",
		"-y",
		out,
	)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		g.log.Debug("thumbnail timed out", zap.String("video", videoPath), zap.Float64("at", ts), zap.Duration("timeout", g.cfg.Timeout))
		_ = os.Remove(out)
		return false
	}
	if exists(out) {
		return true
	}
	g.log.Debug("thumbnail failed", zap.String("video", videoPath), zap.Float64("at", ts), zap.Error(err), zap.ByteString("output", tail(output, 512)))
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}
