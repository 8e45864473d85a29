package models

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type TrackType string

const (
	TrackEmbedded TrackType = "embedded"
	TrackExternal TrackType = "external"
)

// ──────────────────── Folders ────────────────────

// Folder is a directory under a scan root that holds videos, or a
// placeholder linking a deeper video folder back to the root.
// Path is relative to RootPath; the root itself is ".". ParentPath is ""
// for top-level folders.
type Folder struct {
	ID            uuid.UUID `json:"id" db:"id"`
	RootPath      string    `json:"root_path" db:"root_path"`
	Path          string    `json:"path" db:"path"`
	ParentPath    string    `json:"parent_path" db:"parent_path"`
	Name          string    `json:"name" db:"name"`
	IsExpanded    bool      `json:"is_expanded" db:"is_expanded"`
	VideoCount    int       `json:"video_count" db:"video_count"`
	TotalDuration float64   `json:"total_duration" db:"total_duration"`
	TotalSize     int64     `json:"total_size" db:"total_size"`
	LastUpdated   time.Time `json:"last_updated" db:"last_updated"`
}

// ──────────────────── Videos ────────────────────

// VideoRecord is one physical video file. WatchedPercent, LastPosition and
// the two selection ids are user state: the scanner never overwrites them on
// an existing row.
type VideoRecord struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	RootPath           string        `json:"root_path" db:"root_path"`
	FolderPath         string        `json:"folder_path" db:"folder_path"`
	FilePath           string        `json:"file_path" db:"file_path"`
	FileName           string        `json:"file_name" db:"file_name"`
	TrackNumber        int           `json:"track_number" db:"track_number"`
	Duration           float64       `json:"duration" db:"duration"`
	Resolution         *string       `json:"resolution,omitempty" db:"resolution"`
	FileSize           int64         `json:"file_size" db:"file_size"`
	FileMTime          int64         `json:"file_mtime" db:"file_mtime"`
	Codec              *string       `json:"codec,omitempty" db:"codec"`
	ThumbnailPath      *string       `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	Thumbnails         []string      `json:"thumbnails" db:"thumbnails_json"`
	WatchedPercent     int           `json:"watched_percent" db:"watched_percent"`
	LastPosition       float64       `json:"last_position" db:"last_position"`
	AudioTrackCount    int           `json:"audio_track_count" db:"audio_track_count"`
	SelectedAudioID    uuid.NullUUID `json:"selected_audio_id" db:"selected_audio_id"`
	SubtitleTrackCount int           `json:"subtitle_track_count" db:"subtitle_track_count"`
	SelectedSubtitleID uuid.NullUUID `json:"selected_subtitle_id" db:"selected_subtitle_id"`
}

// ──────────────────── Tracks ────────────────────

// TrackIdentity identifies a track independently of its row id: embedded
// tracks by stream index, external tracks by sidecar path.
type TrackIdentity struct {
	Type         TrackType `json:"track_type"`
	StreamIndex  *int      `json:"stream_index,omitempty"`
	ExternalPath *string   `json:"external_path,omitempty"`
}

// Matches reports whether two identities name the same track.
func (id TrackIdentity) Matches(other TrackIdentity) bool {
	if id.Type != other.Type {
		return false
	}
	if id.Type == TrackEmbedded {
		return id.StreamIndex != nil && other.StreamIndex != nil && *id.StreamIndex == *other.StreamIndex
	}
	return id.ExternalPath != nil && other.ExternalPath != nil && *id.ExternalPath == *other.ExternalPath
}

type AudioTrack struct {
	ID            uuid.UUID `json:"id" db:"id"`
	VideoID       uuid.UUID `json:"video_id" db:"video_id"`
	VideoFilePath string    `json:"video_file_path" db:"video_file_path"`
	TrackType     TrackType `json:"track_type" db:"track_type"`
	StreamIndex   *int      `json:"stream_index,omitempty" db:"stream_index"`
	ExternalPath  *string   `json:"external_path,omitempty" db:"external_path"`
	ExternalName  *string   `json:"external_name,omitempty" db:"external_name"`
	Language      *string   `json:"language,omitempty" db:"language"`
	Title         *string   `json:"title,omitempty" db:"title"`
	Codec         *string   `json:"codec,omitempty" db:"codec"`
	Bitrate       *int64    `json:"bitrate,omitempty" db:"bitrate"`
	SampleRate    *int      `json:"sample_rate,omitempty" db:"sample_rate"`
	Channels      *int      `json:"channels,omitempty" db:"channels"`
	ChannelLayout *string   `json:"channel_layout,omitempty" db:"channel_layout"`
	Duration      float64   `json:"duration" db:"duration"`
	FileSize      int64     `json:"file_size" db:"file_size"`
	IsDefault     bool      `json:"is_default" db:"is_default"`
	MatchScore    int       `json:"match_score" db:"match_score"`
}

func (t AudioTrack) Identity() TrackIdentity {
	return TrackIdentity{Type: t.TrackType, StreamIndex: t.StreamIndex, ExternalPath: t.ExternalPath}
}

type SubtitleTrack struct {
	ID            uuid.UUID `json:"id" db:"id"`
	VideoID       uuid.UUID `json:"video_id" db:"video_id"`
	VideoFilePath string    `json:"video_file_path" db:"video_file_path"`
	TrackType     TrackType `json:"track_type" db:"track_type"`
	StreamIndex   *int      `json:"stream_index,omitempty" db:"stream_index"`
	ExternalPath  *string   `json:"external_path,omitempty" db:"external_path"`
	ExternalName  *string   `json:"external_name,omitempty" db:"external_name"`
	Language      *string   `json:"language,omitempty" db:"language"`
	Title         *string   `json:"title,omitempty" db:"title"`
	Codec         *string   `json:"codec,omitempty" db:"codec"`
	Format        *string   `json:"format,omitempty" db:"format"`
	IsDefault     bool      `json:"is_default" db:"is_default"`
	IsForced      bool      `json:"is_forced" db:"is_forced"`
	MatchScore    int       `json:"match_score" db:"match_score"`
}

func (t SubtitleTrack) Identity() TrackIdentity {
	return TrackIdentity{Type: t.TrackType, StreamIndex: t.StreamIndex, ExternalPath: t.ExternalPath}
}

// ──────────────────── Scan statistics ────────────────────

// ScanStatistics are the counters of one scan run. They are updated from
// worker goroutines and read once the run is over.
type ScanStatistics struct {
	ThumbnailsGenerated atomic.Int64
	ThumbnailsCached    atomic.Int64
	ThumbnailsFailed    atomic.Int64
	probeNanos          atomic.Int64
	thumbnailNanos      atomic.Int64
}

func (s *ScanStatistics) AddProbeTime(d time.Duration)     { s.probeNanos.Add(int64(d)) }
func (s *ScanStatistics) AddThumbnailTime(d time.Duration) { s.thumbnailNanos.Add(int64(d)) }
func (s *ScanStatistics) ProbeTime() time.Duration         { return time.Duration(s.probeNanos.Load()) }
func (s *ScanStatistics) ThumbnailTime() time.Duration     { return time.Duration(s.thumbnailNanos.Load()) }

// ──────────────────── Scan result ────────────────────

type ScanResult struct {
	RunID                      uuid.UUID     `json:"run_id"`
	RootPath                   string        `json:"root_path"`
	Folders                    int           `json:"folders"`
	Videos                     int           `json:"videos"`
	CachedVideos               int           `json:"cached_videos"`
	NewVideos                  int           `json:"new_videos"`
	FailedFiles                int           `json:"failed_files"`
	SkippedFolders             int           `json:"skipped_folders"`
	EmbeddedAudio              int           `json:"embedded_audio"`
	ExternalAudio              int           `json:"external_audio"`
	EmbeddedSubtitles          int           `json:"embedded_subtitles"`
	ExternalSubtitles          int           `json:"external_subtitles"`
	RestoredAudioSelections    int           `json:"restored_audio_selections"`
	RestoredSubtitleSelections int           `json:"restored_subtitle_selections"`
	ThumbnailsGenerated        int64         `json:"thumbnails_generated"`
	ThumbnailsCached           int64         `json:"thumbnails_cached"`
	ThumbnailsFailed           int64         `json:"thumbnails_failed"`
	ProbeTime                  time.Duration `json:"probe_time"`
	ThumbnailTime              time.Duration `json:"thumbnail_time"`
	TotalTime                  time.Duration `json:"total_time"`
	Errors                     []string      `json:"errors,omitempty"`
}

// Fill copies the counters of stats into the result.
func (r *ScanResult) Fill(stats *ScanStatistics) {
	r.ThumbnailsGenerated = stats.ThumbnailsGenerated.Load()
	r.ThumbnailsCached = stats.ThumbnailsCached.Load()
	r.ThumbnailsFailed = stats.ThumbnailsFailed.Load()
	r.ProbeTime = stats.ProbeTime()
	r.ThumbnailTime = stats.ThumbnailTime()
}
