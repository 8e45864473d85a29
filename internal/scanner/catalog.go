package scanner

import (
	"context"

	"github.com/google/uuid"

	"github.com/JustinTDCT/CourseVault/internal/ffmpeg"
	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/preview"
)

// Catalog is the persistent store the scanner reads prior state from and
// writes results to. Reads happen outside transactions, from worker
// goroutines; writes go through a CatalogTx on the scanning goroutine.
type Catalog interface {
	// CountRoot reports how many folders and videos are stored for root.
	CountRoot(ctx context.Context, rootPath string) (folders, videos int, err error)
	// GetVideoByPath returns nil, nil when the file is not catalogued.
	GetVideoByPath(ctx context.Context, filePath string) (*models.VideoRecord, error)
	GetAudioTrack(ctx context.Context, id uuid.UUID) (*models.AudioTrack, error)
	GetSubtitleTrack(ctx context.Context, id uuid.UUID) (*models.SubtitleTrack, error)
	Begin(ctx context.Context) (CatalogTx, error)
}

// CatalogTx is one atomic unit of catalog writes.
type CatalogTx interface {
	// UpsertFolder inserts the folder or updates its name, parent and
	// aggregates. The UI expansion flag of an existing row is kept.
	UpsertFolder(ctx context.Context, f *models.Folder) error
	// InsertFolderIfMissing adds a placeholder folder, ignoring conflicts.
	InsertFolderIfMissing(ctx context.Context, f *models.Folder) error
	// ParentPaths lists the distinct non-empty parent paths stored for root.
	ParentPaths(ctx context.Context, rootPath string) ([]string, error)
	// UpsertVideo inserts the video keyed by file path or updates its scan
	// metadata, leaving watch state and selections untouched. It returns the
	// row id.
	UpsertVideo(ctx context.Context, v *models.VideoRecord) (uuid.UUID, error)
	// ReplaceAudioTracks deletes the video's audio rows and inserts tracks,
	// setting each track's ID and VideoID.
	ReplaceAudioTracks(ctx context.Context, videoID uuid.UUID, tracks []models.AudioTrack) error
	ReplaceSubtitleTracks(ctx context.Context, videoID uuid.UUID, tracks []models.SubtitleTrack) error
	SetSelectedTracks(ctx context.Context, videoID uuid.UUID, audio, subtitle uuid.NullUUID) error
	Commit() error
	Rollback() error
}

// Prober reads media metadata. ffmpeg.FFprobe satisfies it.
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	ProbeAudio(ctx context.Context, path string) (*ffmpeg.AudioInfo, error)
}

// Thumbnailer produces preview images. preview.Generator satisfies it.
type Thumbnailer interface {
	Generate(ctx context.Context, req preview.Request) preview.Result
}

// ProgressFunc receives human-readable progress lines.
type ProgressFunc func(line string)
