package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/ffmpeg"
	"github.com/JustinTDCT/CourseVault/internal/fingerprint"
	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/preview"
)

// FileTask is one video to process. TrackNumber is assigned by the caller
// from the folder's natural order before any work is dispatched.
type FileTask struct {
	RootPath    string
	Folder      *VideoFolder
	FileName    string
	TrackNumber int
}

func (t FileTask) Path() string {
	return filepath.Join(t.Folder.Dir, t.FileName)
}

// FileResult is the outcome of processing one video. When Err is set the
// other fields are meaningless and the file is skipped.
type FileResult struct {
	Record    models.VideoRecord
	Audio     []models.AudioTrack // embedded first, then external
	Subtitles []models.SubtitleTrack

	EmbeddedAudio     int
	ExternalAudio     int
	EmbeddedSubtitles int
	ExternalSubtitles int

	// Selections held before this scan, to be re-resolved against the new
	// track rows.
	PriorAudio    *models.TrackIdentity
	PriorSubtitle *models.TrackIdentity

	FromCache bool
	Err       error
}

// Processor builds the complete record of a single video file.
type Processor struct {
	catalog Catalog
	prober  Prober
	thumbs  Thumbnailer
	log     *zap.Logger
}

func NewProcessor(catalog Catalog, prober Prober, thumbs Thumbnailer, log *zap.Logger) *Processor {
	return &Processor{catalog: catalog, prober: prober, thumbs: thumbs, log: log}
}

// Process never panics the batch: every failure is reported in Err.
func (p *Processor) Process(ctx context.Context, task FileTask, stats *models.ScanStatistics) (res FileResult) {
	path := task.Path()
	defer func() {
		if r := recover(); r != nil {
			res = FileResult{Err: fmt.Errorf("process %s: panic: %v", path, r)}
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{Err: fmt.Errorf("stat %s: %w", path, err)}
	}

	existing, err := p.catalog.GetVideoByPath(ctx, path)
	if err != nil {
		return FileResult{Err: fmt.Errorf("load %s: %w", path, err)}
	}
	if existing != nil {
		res.PriorAudio = p.priorAudio(ctx, existing)
		res.PriorSubtitle = p.priorSubtitle(ctx, existing)
	}

	probed := p.probe(ctx, path, stats)
	res.FromCache = existing != nil && fingerprint.Unchanged(info, existing.FileSize, existing.FileMTime)

	rec := models.VideoRecord{
		RootPath:    task.RootPath,
		FolderPath:  task.Folder.RelPath,
		FilePath:    path,
		FileName:    task.FileName,
		TrackNumber: task.TrackNumber,
		Duration:    probed.Duration,
		Resolution:  optional(probed.Resolution),
		Codec:       optional(probed.Codec),
		FileSize:    info.Size(),
		FileMTime:   info.ModTime().UnixNano(),
	}

	var stored []string
	if existing != nil {
		rec.ID = existing.ID
		rec.WatchedPercent = existing.WatchedPercent
		rec.LastPosition = existing.LastPosition
		rec.SelectedAudioID = existing.SelectedAudioID
		rec.SelectedSubtitleID = existing.SelectedSubtitleID
		stored = existing.Thumbnails
	}
	if res.FromCache {
		if existing.Duration > 0 {
			rec.Duration = existing.Duration
		}
		if existing.Resolution != nil {
			rec.Resolution = existing.Resolution
		}
		if existing.Codec != nil {
			rec.Codec = existing.Codec
		}
	}

	if p.thumbs != nil {
		thumbs := p.thumbs.Generate(ctx, preview.Request{
			VideoPath: path,
			Duration:  rec.Duration,
			CacheKey:  fingerprint.FromInfo(path, info),
			Existing:  stored,
		})
		stats.ThumbnailsGenerated.Add(int64(thumbs.Generated))
		stats.ThumbnailsCached.Add(int64(thumbs.Cached))
		stats.ThumbnailsFailed.Add(int64(thumbs.Failed))
		stats.AddThumbnailTime(thumbs.Elapsed)
		rec.Thumbnails = thumbs.Paths
		rec.ThumbnailPath = optional(thumbs.Primary())
	}

	external := p.externalAudio(ctx, task.Folder.Dir, task.FileName, task.Folder.Audio)
	externalSubs := externalSubtitles(task.Folder.Dir, task.FileName, task.Folder.Subtitles)

	res.Audio = append(probed.Audio, external...)
	res.Subtitles = append(probed.Subtitles, externalSubs...)
	for i := range res.Audio {
		res.Audio[i].VideoFilePath = path
	}
	for i := range res.Subtitles {
		res.Subtitles[i].VideoFilePath = path
	}
	res.EmbeddedAudio, res.ExternalAudio = len(probed.Audio), len(external)
	res.EmbeddedSubtitles, res.ExternalSubtitles = len(probed.Subtitles), len(externalSubs)

	rec.AudioTrackCount = len(res.Audio)
	rec.SubtitleTrackCount = len(res.Subtitles)
	res.Record = rec
	return res
}

// probe returns empty metadata when ffprobe is unavailable or fails.
func (p *Processor) probe(ctx context.Context, path string, stats *models.ScanStatistics) *ffmpeg.VideoInfo {
	if p.prober == nil {
		return &ffmpeg.VideoInfo{}
	}
	start := time.Now()
	info, err := p.prober.ProbeVideo(ctx, path)
	stats.AddProbeTime(time.Since(start))
	if err != nil {
		p.log.Debug("probe failed", zap.String("path", path), zap.Error(err))
		return &ffmpeg.VideoInfo{}
	}
	return info
}

func (p *Processor) priorAudio(ctx context.Context, v *models.VideoRecord) *models.TrackIdentity {
	if !v.SelectedAudioID.Valid {
		return nil
	}
	t, err := p.catalog.GetAudioTrack(ctx, v.SelectedAudioID.UUID)
	if err != nil {
		p.log.Debug("selected audio track not found", zap.String("video", v.FilePath), zap.Error(err))
		return nil
	}
	id := t.Identity()
	return &id
}

func (p *Processor) priorSubtitle(ctx context.Context, v *models.VideoRecord) *models.TrackIdentity {
	if !v.SelectedSubtitleID.Valid {
		return nil
	}
	t, err := p.catalog.GetSubtitleTrack(ctx, v.SelectedSubtitleID.UUID)
	if err != nil {
		p.log.Debug("selected subtitle track not found", zap.String("video", v.FilePath), zap.Error(err))
		return nil
	}
	id := t.Identity()
	return &id
}
