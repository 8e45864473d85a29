package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
)

// RootScanner is the part of the scanner the job needs.
type RootScanner interface {
	Scan(ctx context.Context, root string, progress scanner.ProgressFunc) (*models.ScanResult, error)
}

type ScanHandler struct {
	scanner RootScanner
	log     *zap.Logger
	// progressEvery throttles info-level progress lines; every line is
	// still logged at debug.
	progressEvery time.Duration
}

func NewScanHandler(sc RootScanner, log *zap.Logger) *ScanHandler {
	return &ScanHandler{scanner: sc, log: log.Named("jobs"), progressEvery: 2 * time.Second}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}
	if p.Root == "" {
		return fmt.Errorf("scan payload without root: %w", asynq.SkipRetry)
	}

	log := h.log.With(zap.String("root", p.Root))
	log.Info("scan job started")

	throttle := rate.Sometimes{Interval: h.progressEvery}
	progress := func(line string) {
		log.Debug(line)
		throttle.Do(func() { log.Info("scan progress", zap.String("line", line)) })
	}

	result, err := h.scanner.Scan(ctx, p.Root, progress)
	switch {
	case errors.Is(err, scanner.ErrRootNotFound):
		// retrying cannot make a missing directory appear
		return fmt.Errorf("scan: %w: %w", err, asynq.SkipRetry)
	case errors.Is(err, scanner.ErrAllFilesFailed):
		// a retry would reprocess the same broken files
		if result != nil {
			log.Warn("scan job found no usable videos",
				zap.Int("folders", result.Folders),
				zap.Int("failed", result.FailedFiles))
		}
		return fmt.Errorf("scan: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	log.Info("scan job complete",
		zap.Int("folders", result.Folders),
		zap.Int("videos", result.Videos),
		zap.Int("cached", result.CachedVideos),
		zap.Int("failed", result.FailedFiles))
	return nil
}
