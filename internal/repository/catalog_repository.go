package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/scanner"
)

var ErrNotFound = errors.New("not found")

// CatalogRepository stores folders, videos and their tracks. Queries use
// $N placeholders in order of first appearance, which both lib/pq and
// go-sqlite3 accept.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const folderColumns = `id, root_path, path, parent_path, name, is_expanded, video_count,
	total_duration, total_size, last_updated`

func scanFolder(row rowScanner) (*models.Folder, error) {
	f := &models.Folder{}
	err := row.Scan(&f.ID, &f.RootPath, &f.Path, &f.ParentPath, &f.Name, &f.IsExpanded,
		&f.VideoCount, &f.TotalDuration, &f.TotalSize, &f.LastUpdated)
	return f, err
}

const videoColumns = `id, root_path, folder_path, file_path, file_name, track_number, duration,
	resolution, file_size, file_mtime, codec, thumbnail_path, thumbnails_json, watched_percent,
	last_position, audio_track_count, selected_audio_id, subtitle_track_count, selected_subtitle_id`

func scanVideo(row rowScanner) (*models.VideoRecord, error) {
	v := &models.VideoRecord{}
	var thumbs string
	err := row.Scan(&v.ID, &v.RootPath, &v.FolderPath, &v.FilePath, &v.FileName, &v.TrackNumber,
		&v.Duration, &v.Resolution, &v.FileSize, &v.FileMTime, &v.Codec, &v.ThumbnailPath,
		&thumbs, &v.WatchedPercent, &v.LastPosition, &v.AudioTrackCount, &v.SelectedAudioID,
		&v.SubtitleTrackCount, &v.SelectedSubtitleID)
	if err != nil {
		return nil, err
	}
	if thumbs != "" {
		if err := json.Unmarshal([]byte(thumbs), &v.Thumbnails); err != nil {
			return nil, fmt.Errorf("decode thumbnails of %s: %w", v.FilePath, err)
		}
	}
	return v, nil
}

const audioColumns = `id, video_id, video_file_path, track_type, stream_index, external_path,
	external_name, language, title, codec, bitrate, sample_rate, channels, channel_layout,
	duration, file_size, is_default, match_score`

func scanAudio(row rowScanner) (*models.AudioTrack, error) {
	t := &models.AudioTrack{}
	err := row.Scan(&t.ID, &t.VideoID, &t.VideoFilePath, &t.TrackType, &t.StreamIndex,
		&t.ExternalPath, &t.ExternalName, &t.Language, &t.Title, &t.Codec, &t.Bitrate,
		&t.SampleRate, &t.Channels, &t.ChannelLayout, &t.Duration, &t.FileSize, &t.IsDefault,
		&t.MatchScore)
	return t, err
}

const subtitleColumns = `id, video_id, video_file_path, track_type, stream_index, external_path,
	external_name, language, title, codec, format, is_default, is_forced, match_score`

func scanSubtitle(row rowScanner) (*models.SubtitleTrack, error) {
	t := &models.SubtitleTrack{}
	err := row.Scan(&t.ID, &t.VideoID, &t.VideoFilePath, &t.TrackType, &t.StreamIndex,
		&t.ExternalPath, &t.ExternalName, &t.Language, &t.Title, &t.Codec, &t.Format,
		&t.IsDefault, &t.IsForced, &t.MatchScore)
	return t, err
}

// ── Reads ──

// CountRoot returns how many folders and videos are catalogued under root.
func (r *CatalogRepository) CountRoot(ctx context.Context, root string) (int, int, error) {
	var folders, videos int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders WHERE root_path = $1`, root).Scan(&folders); err != nil {
		return 0, 0, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_files WHERE root_path = $1`, root).Scan(&videos); err != nil {
		return 0, 0, err
	}
	return folders, videos, nil
}

// GetVideoByPath returns nil, nil when the file is not catalogued.
func (r *CatalogRepository) GetVideoByPath(ctx context.Context, path string) (*models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM video_files WHERE file_path = $1`
	v, err := scanVideo(r.db.QueryRowContext(ctx, query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *CatalogRepository) GetAudioTrack(ctx context.Context, id uuid.UUID) (*models.AudioTrack, error) {
	query := `SELECT ` + audioColumns + ` FROM audio_tracks WHERE id = $1`
	t, err := scanAudio(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audio track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *CatalogRepository) GetSubtitleTrack(ctx context.Context, id uuid.UUID) (*models.SubtitleTrack, error) {
	query := `SELECT ` + subtitleColumns + ` FROM subtitle_tracks WHERE id = $1`
	t, err := scanSubtitle(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subtitle track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListFolders returns the folders of root ordered by path.
func (r *CatalogRepository) ListFolders(ctx context.Context, root string) ([]models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE root_path = $1 ORDER BY path`
	rows, err := r.db.QueryContext(ctx, query, root)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

// ListVideos returns the videos of one folder in track order.
func (r *CatalogRepository) ListVideos(ctx context.Context, root, folderPath string) ([]models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM video_files
		WHERE root_path = $1 AND folder_path = $2 ORDER BY track_number`
	rows, err := r.db.QueryContext(ctx, query, root, folderPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.VideoRecord
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// AudioTracks returns embedded tracks by stream index, then external tracks
// by descending match score.
func (r *CatalogRepository) AudioTracks(ctx context.Context, videoID uuid.UUID) ([]models.AudioTrack, error) {
	query := `SELECT ` + audioColumns + ` FROM audio_tracks WHERE video_id = $1
		ORDER BY track_type, stream_index, match_score DESC, external_path`
	rows, err := r.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []models.AudioTrack
	for rows.Next() {
		t, err := scanAudio(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

func (r *CatalogRepository) SubtitleTracks(ctx context.Context, videoID uuid.UUID) ([]models.SubtitleTrack, error) {
	query := `SELECT ` + subtitleColumns + ` FROM subtitle_tracks WHERE video_id = $1
		ORDER BY track_type, stream_index, match_score DESC, external_path`
	rows, err := r.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []models.SubtitleTrack
	for rows.Next() {
		t, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// ── User state ──

// UpdateProgress records playback progress for a video.
func (r *CatalogRepository) UpdateProgress(ctx context.Context, videoID uuid.UUID, watchedPercent int, position float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE video_files SET watched_percent = $1, last_position = $2 WHERE id = $3`,
		watchedPercent, position, videoID)
	if err != nil {
		return err
	}
	return expectOne(res, "video", videoID)
}

// SelectTracks stores the user's audio and subtitle choice for a video.
func (r *CatalogRepository) SelectTracks(ctx context.Context, videoID uuid.UUID, audio, subtitle uuid.NullUUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE video_files SET selected_audio_id = $1, selected_subtitle_id = $2 WHERE id = $3`,
		audio, subtitle, videoID)
	if err != nil {
		return err
	}
	return expectOne(res, "video", videoID)
}

// SetExpanded persists the folder tree state of the UI.
func (r *CatalogRepository) SetExpanded(ctx context.Context, root, path string, expanded bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE folders SET is_expanded = $1 WHERE root_path = $2 AND path = $3`,
		expanded, root, path)
	return err
}

func expectOne(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// ClearAll deletes every folder, video and track. It is the only operation
// that removes catalogued videos.
func (r *CatalogRepository) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"subtitle_tracks", "audio_tracks", "video_files", "folders"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ── Writes ──

func (r *CatalogRepository) Begin(ctx context.Context) (scanner.CatalogTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &catalogTx{tx: tx}, nil
}

type catalogTx struct {
	tx *sql.Tx
}

func (t *catalogTx) Commit() error   { return t.tx.Commit() }
func (t *catalogTx) Rollback() error { return t.tx.Rollback() }

// UpsertFolder inserts or refreshes a folder row; is_expanded is kept.
func (t *catalogTx) UpsertFolder(ctx context.Context, f *models.Folder) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.LastUpdated = time.Now().UTC()
	query := `
		INSERT INTO folders (id, root_path, path, parent_path, name, is_expanded, video_count,
			total_duration, total_size, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (root_path, path) DO UPDATE SET
			parent_path = excluded.parent_path,
			name = excluded.name,
			video_count = excluded.video_count,
			total_duration = excluded.total_duration,
			total_size = excluded.total_size,
			last_updated = excluded.last_updated
		RETURNING id, is_expanded`
	return t.tx.QueryRowContext(ctx, query, f.ID, f.RootPath, f.Path, f.ParentPath, f.Name,
		f.IsExpanded, f.VideoCount, f.TotalDuration, f.TotalSize, f.LastUpdated).
		Scan(&f.ID, &f.IsExpanded)
}

// InsertFolderIfMissing adds a placeholder row and leaves existing rows alone.
func (t *catalogTx) InsertFolderIfMissing(ctx context.Context, f *models.Folder) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.LastUpdated = time.Now().UTC()
	query := `
		INSERT INTO folders (id, root_path, path, parent_path, name, is_expanded, video_count,
			total_duration, total_size, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (root_path, path) DO NOTHING`
	_, err := t.tx.ExecContext(ctx, query, f.ID, f.RootPath, f.Path, f.ParentPath, f.Name,
		f.IsExpanded, f.VideoCount, f.TotalDuration, f.TotalSize, f.LastUpdated)
	return err
}

// ParentPaths lists the distinct non-empty parent paths stored for root.
func (t *catalogTx) ParentPaths(ctx context.Context, root string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT parent_path FROM folders WHERE root_path = $1 AND parent_path <> '' ORDER BY parent_path`,
		root)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// UpsertVideo writes the scanned fields of v keyed by file path. Watch
// progress and track selections of an existing row are not touched.
func (t *catalogTx) UpsertVideo(ctx context.Context, v *models.VideoRecord) (uuid.UUID, error) {
	id := v.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	thumbs := v.Thumbnails
	if thumbs == nil {
		thumbs = []string{}
	}
	thumbsJSON, err := json.Marshal(thumbs)
	if err != nil {
		return uuid.Nil, err
	}

	query := `
		INSERT INTO video_files (id, root_path, folder_path, file_path, file_name, track_number,
			duration, resolution, file_size, file_mtime, codec, thumbnail_path, thumbnails_json,
			audio_track_count, subtitle_track_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (file_path) DO UPDATE SET
			root_path = excluded.root_path,
			folder_path = excluded.folder_path,
			file_name = excluded.file_name,
			track_number = excluded.track_number,
			duration = excluded.duration,
			resolution = excluded.resolution,
			file_size = excluded.file_size,
			file_mtime = excluded.file_mtime,
			codec = excluded.codec,
			thumbnail_path = excluded.thumbnail_path,
			thumbnails_json = excluded.thumbnails_json,
			audio_track_count = excluded.audio_track_count,
			subtitle_track_count = excluded.subtitle_track_count
		RETURNING id`
	err = t.tx.QueryRowContext(ctx, query, id, v.RootPath, v.FolderPath, v.FilePath, v.FileName,
		v.TrackNumber, v.Duration, v.Resolution, v.FileSize, v.FileMTime, v.Codec,
		v.ThumbnailPath, string(thumbsJSON), v.AudioTrackCount, v.SubtitleTrackCount).
		Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	v.ID = id
	return id, nil
}

// ReplaceAudioTracks deletes the video's audio rows and inserts tracks with
// fresh ids, written back into the slice.
func (t *catalogTx) ReplaceAudioTracks(ctx context.Context, videoID uuid.UUID, tracks []models.AudioTrack) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM audio_tracks WHERE video_id = $1`, videoID); err != nil {
		return err
	}
	query := `
		INSERT INTO audio_tracks (id, video_id, video_file_path, track_type, stream_index,
			external_path, external_name, language, title, codec, bitrate, sample_rate, channels,
			channel_layout, duration, file_size, is_default, match_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	for i := range tracks {
		tr := &tracks[i]
		tr.ID = uuid.New()
		tr.VideoID = videoID
		if _, err := t.tx.ExecContext(ctx, query, tr.ID, tr.VideoID, tr.VideoFilePath, tr.TrackType,
			tr.StreamIndex, tr.ExternalPath, tr.ExternalName, tr.Language, tr.Title, tr.Codec,
			tr.Bitrate, tr.SampleRate, tr.Channels, tr.ChannelLayout, tr.Duration, tr.FileSize,
			tr.IsDefault, tr.MatchScore); err != nil {
			return err
		}
	}
	return nil
}

func (t *catalogTx) ReplaceSubtitleTracks(ctx context.Context, videoID uuid.UUID, tracks []models.SubtitleTrack) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM subtitle_tracks WHERE video_id = $1`, videoID); err != nil {
		return err
	}
	query := `
		INSERT INTO subtitle_tracks (id, video_id, video_file_path, track_type, stream_index,
			external_path, external_name, language, title, codec, format, is_default, is_forced,
			match_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	for i := range tracks {
		tr := &tracks[i]
		tr.ID = uuid.New()
		tr.VideoID = videoID
		if _, err := t.tx.ExecContext(ctx, query, tr.ID, tr.VideoID, tr.VideoFilePath, tr.TrackType,
			tr.StreamIndex, tr.ExternalPath, tr.ExternalName, tr.Language, tr.Title, tr.Codec,
			tr.Format, tr.IsDefault, tr.IsForced, tr.MatchScore); err != nil {
			return err
		}
	}
	return nil
}

// SetSelectedTracks overwrites both selections; invalid values store NULL.
func (t *catalogTx) SetSelectedTracks(ctx context.Context, videoID uuid.UUID, audio, subtitle uuid.NullUUID) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE video_files SET selected_audio_id = $1, selected_subtitle_id = $2 WHERE id = $3`,
		audio, subtitle, videoID)
	return err
}
