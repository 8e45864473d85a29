// Package scanner walks a course library, builds one record per video file
// and reconciles the results with the catalog without losing user state.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/workerpool"
)

var (
	ErrRootNotFound   = errors.New("scan root not found")
	ErrAllFilesFailed = errors.New("every video file failed to process")
)

// maxReportedErrors caps ScanResult.Errors; the count is always exact.
const maxReportedErrors = 100

type Config struct {
	Extensions   Extensions
	VideoWorkers int
	// ParallelThreshold is the folder size above which videos go to the
	// worker pool.
	ParallelThreshold int
}

type Scanner struct {
	catalog   Catalog
	processor *Processor
	pool      *workerpool.Pool
	cfg       Config
	log       *zap.Logger
}

// New creates a scanner. prober may be nil when ffprobe is unavailable.
func New(catalog Catalog, prober Prober, thumbs Thumbnailer, cfg Config, log *zap.Logger) *Scanner {
	cfg.VideoWorkers = max(cfg.VideoWorkers, 1)
	log = log.Named("scanner")
	return &Scanner{
		catalog:   catalog,
		processor: NewProcessor(catalog, prober, thumbs, log),
		pool:      workerpool.New(cfg.VideoWorkers),
		cfg:       cfg,
		log:       log,
	}
}

// Close stops the video worker pool.
func (s *Scanner) Close() {
	s.pool.Close()
}

// Scan reconciles everything under root with the catalog. Catalogued files
// that disappeared from disk are left in place. A non-nil result is always
// returned, also alongside an error.
func (s *Scanner) Scan(ctx context.Context, root string, progress ProgressFunc) (*models.ScanResult, error) {
	start := time.Now()
	if progress == nil {
		progress = func(string) {}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	result := &models.ScanResult{RunID: uuid.New(), RootPath: abs}
	log := s.log.With(zap.String("root", abs), zap.String("run_id", result.RunID.String()))

	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		progress(fmt.Sprintf("Scan root does not exist: %s", abs))
		return result, fmt.Errorf("%w: %s", ErrRootNotFound, abs)
	}

	progress(fmt.Sprintf("Scanning %s", abs))
	if folders, videos, err := s.catalog.CountRoot(ctx, abs); err != nil {
		log.Warn("count existing data failed", zap.Error(err))
	} else if folders > 0 {
		progress(fmt.Sprintf("Existing data: %d folders, %d videos", folders, videos))
	}

	folders, skipped := WalkFolders(abs, s.cfg.Extensions, log)
	result.SkippedFolders = skipped
	progress(fmt.Sprintf("Found %d folders with videos", len(folders)))

	stats := &models.ScanStatistics{}
	discovered := 0
	for i := range folders {
		if err := ctx.Err(); err != nil {
			return s.finish(result, stats, start), err
		}
		f := &folders[i]
		discovered += len(f.Videos)
		if err := s.scanFolder(ctx, abs, f, stats, result, progress); err != nil {
			return s.finish(result, stats, start), fmt.Errorf("folder %s: %w", f.RelPath, err)
		}
		result.Folders++
	}

	if err := s.buildHierarchy(ctx, abs); err != nil {
		return s.finish(result, stats, start), fmt.Errorf("build folder hierarchy: %w", err)
	}

	s.finish(result, stats, start)
	for _, line := range summary(result) {
		progress(line)
	}
	log.Info("scan complete",
		zap.Int("folders", result.Folders),
		zap.Int("videos", result.Videos),
		zap.Int("cached", result.CachedVideos),
		zap.Int("new", result.NewVideos),
		zap.Int("failed", result.FailedFiles),
		zap.Int64("thumbnails_generated", result.ThumbnailsGenerated),
		zap.Duration("total", result.TotalTime))

	if discovered > 0 && result.Videos == 0 {
		return result, ErrAllFilesFailed
	}
	return result, nil
}

func (s *Scanner) finish(result *models.ScanResult, stats *models.ScanStatistics, start time.Time) *models.ScanResult {
	result.Fill(stats)
	result.TotalTime = time.Since(start)
	return result
}

// scanFolder processes the folder's videos and commits them together with
// the folder row in one transaction.
func (s *Scanner) scanFolder(ctx context.Context, root string, f *VideoFolder, stats *models.ScanStatistics, result *models.ScanResult, progress ProgressFunc) error {
	start := time.Now()
	generatedBefore := stats.ThumbnailsGenerated.Load()

	results := s.processFolder(ctx, root, f, stats)

	folder := &models.Folder{
		RootPath:   root,
		Path:       f.RelPath,
		ParentPath: f.ParentPath(),
		Name:       f.Name(),
		VideoCount: len(f.Videos),
	}
	var ok []FileResult
	for _, r := range results {
		if r.Err != nil {
			result.FailedFiles++
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, r.Err.Error())
			}
			s.log.Warn("skipping video", zap.Error(r.Err))
			continue
		}
		folder.TotalDuration += r.Record.Duration
		folder.TotalSize += r.Record.FileSize
		ok = append(ok, r)
	}

	tally, err := s.commitFolder(ctx, folder, ok)
	if err != nil {
		return err
	}
	result.Videos += len(ok)
	result.CachedVideos += tally.cached
	result.NewVideos += len(ok) - tally.cached
	result.EmbeddedAudio += tally.embeddedAudio
	result.ExternalAudio += tally.externalAudio
	result.EmbeddedSubtitles += tally.embeddedSubs
	result.ExternalSubtitles += tally.externalSubs
	result.RestoredAudioSelections += tally.restoredAudio
	result.RestoredSubtitleSelections += tally.restoredSubs

	generated := stats.ThumbnailsGenerated.Load() - generatedBefore
	progress(folderLine(folder, root, tally, generated, time.Since(start)))
	s.log.Info("folder scanned",
		zap.String("folder", f.RelPath),
		zap.Int("videos", len(ok)),
		zap.Int("cached", tally.cached),
		zap.Int64("thumbnails_generated", generated),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// processFolder returns one result per video, in track order. Folders larger
// than the threshold are spread over the worker pool.
func (s *Scanner) processFolder(ctx context.Context, root string, f *VideoFolder, stats *models.ScanStatistics) []FileResult {
	tasks := make([]FileTask, len(f.Videos))
	for i, name := range f.Videos {
		tasks[i] = FileTask{RootPath: root, Folder: f, FileName: name, TrackNumber: i + 1}
	}
	results := make([]FileResult, len(tasks))

	if len(tasks) <= s.cfg.ParallelThreshold {
		for i, t := range tasks {
			results[i] = s.processor.Process(ctx, t, stats)
		}
		return results
	}

	batch := s.pool.Batch(s.cfg.VideoWorkers)
	for i, t := range tasks {
		if err := batch.Go(ctx, func() {
			results[i] = s.processor.Process(ctx, t, stats)
		}); err != nil {
			results[i] = FileResult{Err: fmt.Errorf("dispatch %s: %w", t.Path(), err)}
		}
	}
	batch.Wait()
	return results
}

type folderTally struct {
	cached        int
	embeddedAudio int
	externalAudio int
	embeddedSubs  int
	externalSubs  int
	restoredAudio int
	restoredSubs  int
}

func (s *Scanner) commitFolder(ctx context.Context, folder *models.Folder, results []FileResult) (tally folderTally, err error) {
	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return tally, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.UpsertFolder(ctx, folder); err != nil {
		return tally, fmt.Errorf("upsert folder: %w", err)
	}

	for i := range results {
		r := &results[i]
		var videoID uuid.UUID
		if videoID, err = tx.UpsertVideo(ctx, &r.Record); err != nil {
			return tally, fmt.Errorf("upsert video %s: %w", r.Record.FilePath, err)
		}
		if err = tx.ReplaceAudioTracks(ctx, videoID, r.Audio); err != nil {
			return tally, fmt.Errorf("replace audio tracks of %s: %w", r.Record.FilePath, err)
		}
		if err = tx.ReplaceSubtitleTracks(ctx, videoID, r.Subtitles); err != nil {
			return tally, fmt.Errorf("replace subtitle tracks of %s: %w", r.Record.FilePath, err)
		}

		audioSel := resolveAudio(r.PriorAudio, r.Audio)
		subSel := resolveSubtitle(r.PriorSubtitle, r.Subtitles)
		if err = tx.SetSelectedTracks(ctx, videoID, audioSel, subSel); err != nil {
			return tally, fmt.Errorf("restore selections of %s: %w", r.Record.FilePath, err)
		}

		if audioSel.Valid {
			tally.restoredAudio++
		}
		if subSel.Valid {
			tally.restoredSubs++
		}
		if r.FromCache {
			tally.cached++
		}
		tally.embeddedAudio += r.EmbeddedAudio
		tally.externalAudio += r.ExternalAudio
		tally.embeddedSubs += r.EmbeddedSubtitles
		tally.externalSubs += r.ExternalSubtitles
	}

	if err = tx.Commit(); err != nil {
		return tally, fmt.Errorf("commit: %w", err)
	}
	return tally, nil
}

// resolveAudio finds the freshly inserted track with the prior selection's
// identity. No match clears the selection.
func resolveAudio(prior *models.TrackIdentity, tracks []models.AudioTrack) uuid.NullUUID {
	if prior == nil {
		return uuid.NullUUID{}
	}
	for _, t := range tracks {
		if prior.Matches(t.Identity()) {
			return uuid.NullUUID{UUID: t.ID, Valid: true}
		}
	}
	return uuid.NullUUID{}
}

func resolveSubtitle(prior *models.TrackIdentity, tracks []models.SubtitleTrack) uuid.NullUUID {
	if prior == nil {
		return uuid.NullUUID{}
	}
	for _, t := range tracks {
		if prior.Matches(t.Identity()) {
			return uuid.NullUUID{UUID: t.ID, Valid: true}
		}
	}
	return uuid.NullUUID{}
}

// buildHierarchy adds placeholder rows for every ancestor of a stored folder
// so each parent path resolves to a row of the same root.
func (s *Scanner) buildHierarchy(ctx context.Context, root string) (err error) {
	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	parents, err := tx.ParentPaths(ctx, root)
	if err != nil {
		return err
	}
	added := make(map[string]bool)
	for _, p := range parents {
		for _, ancestor := range ancestors(p) {
			if added[ancestor] {
				continue
			}
			added[ancestor] = true
			if err = tx.InsertFolderIfMissing(ctx, &models.Folder{
				RootPath:   root,
				Path:       ancestor,
				ParentPath: parentOf(ancestor),
				Name:       path.Base(ancestor),
			}); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ancestors lists "a", "a/b", "a/b/c" for "a/b/c".
func ancestors(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}

func folderLine(f *models.Folder, root string, t folderTally, generated int64, elapsed time.Duration) string {
	name := f.Path
	if name == "." {
		name = filepath.Base(root)
	}
	hours := int(f.TotalDuration) / 3600
	minutes := int(f.TotalDuration) % 3600 / 60

	parts := []string{
		fmt.Sprintf("%d videos", f.VideoCount),
		fmt.Sprintf("%dh%02dm", hours, minutes),
		humanize.IBytes(uint64(f.TotalSize)),
	}
	if t.cached > 0 {
		parts = append(parts, fmt.Sprintf("cached %d", t.cached))
	}
	if t.embeddedAudio+t.externalAudio > 0 {
		parts = append(parts, fmt.Sprintf("audio %d embedded, %d external", t.embeddedAudio, t.externalAudio))
	}
	if t.embeddedSubs+t.externalSubs > 0 {
		parts = append(parts, fmt.Sprintf("subtitles %d embedded, %d external", t.embeddedSubs, t.externalSubs))
	}
	if generated > 0 {
		parts = append(parts, fmt.Sprintf("thumbnails %d", generated))
	}
	parts = append(parts, fmt.Sprintf("%.1fs", elapsed.Seconds()))
	return name + ": " + strings.Join(parts, " | ")
}

func summary(r *models.ScanResult) []string {
	lines := []string{
		fmt.Sprintf("Folders: %d, videos: %d (cached %d, new %d, failed %d)", r.Folders, r.Videos, r.CachedVideos, r.NewVideos, r.FailedFiles),
		fmt.Sprintf("Thumbnails: generated %d, cached %d, failed %d", r.ThumbnailsGenerated, r.ThumbnailsCached, r.ThumbnailsFailed),
		fmt.Sprintf("Audio tracks: embedded %d, external %d, restored selections %d", r.EmbeddedAudio, r.ExternalAudio, r.RestoredAudioSelections),
		fmt.Sprintf("Subtitle tracks: embedded %d, external %d, restored selections %d", r.EmbeddedSubtitles, r.ExternalSubtitles, r.RestoredSubtitleSelections),
		fmt.Sprintf("Time: probe %.1fs, thumbnails %.1fs, total %.1fs", r.ProbeTime.Seconds(), r.ThumbnailTime.Seconds(), r.TotalTime.Seconds()),
	}
	if r.ThumbnailsGenerated > 0 {
		avg := r.ThumbnailTime.Seconds() / float64(r.ThumbnailsGenerated) * 1000
		lines = append(lines, fmt.Sprintf("Average per thumbnail: %.0fms", avg))
	}
	if r.SkippedFolders > 0 {
		lines = append(lines, fmt.Sprintf("Skipped unreadable folders: %d", r.SkippedFolders))
	}
	return lines
}
