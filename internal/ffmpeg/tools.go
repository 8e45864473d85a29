package ffmpeg

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tools records which external binaries answered a version check. A missing
// ffprobe disables metadata; a missing ffmpeg disables thumbnails.
type Tools struct {
	FFmpeg  bool
	FFprobe bool
}

// DetectTools runs "-version" on both binaries. It never fails: an absent
// tool is logged and reported as unavailable.
func DetectTools(ctx context.Context, ffmpegPath, ffprobePath string, log *zap.Logger) Tools {
	tools := Tools{
		FFmpeg:  toolWorks(ctx, ffmpegPath),
		FFprobe: toolWorks(ctx, ffprobePath),
	}
	if !tools.FFprobe {
		log.Warn("ffprobe not available, video metadata and embedded tracks will be empty", zap.String("path", ffprobePath))
	}
	if !tools.FFmpeg {
		log.Warn("ffmpeg not available, thumbnails will not be generated", zap.String("path", ffmpegPath))
	}
	if tools.FFmpeg && tools.FFprobe {
		log.Debug("ffmpeg tools detected", zap.String("ffmpeg", ffmpegPath), zap.String("ffprobe", ffprobePath))
	}
	return tools
}

func toolWorks(ctx context.Context, path string) bool {
	if path == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return execCommand(ctx, path, "-hide_banner", "-version").Run() == nil
}
