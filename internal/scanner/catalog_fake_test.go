package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JustinTDCT/CourseVault/internal/ffmpeg"
	"github.com/JustinTDCT/CourseVault/internal/models"
	"github.com/JustinTDCT/CourseVault/internal/preview"
)

var errNotFound = errors.New("not found")

// memCatalog is an in-memory Catalog. Transactions write straight through.
type memCatalog struct {
	mu        sync.Mutex
	folders   map[string]*models.Folder // root|path
	videos    map[string]*models.VideoRecord
	audio     map[uuid.UUID]models.AudioTrack
	subtitles map[uuid.UUID]models.SubtitleTrack

	failLookup error
	failUpsert error
	rollbacks  int
	commits    int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		folders:   make(map[string]*models.Folder),
		videos:    make(map[string]*models.VideoRecord),
		audio:     make(map[uuid.UUID]models.AudioTrack),
		subtitles: make(map[uuid.UUID]models.SubtitleTrack),
	}
}

func folderKey(root, path string) string { return root + "|" + path }

func (c *memCatalog) CountRoot(_ context.Context, root string) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	folders, videos := 0, 0
	for _, f := range c.folders {
		if f.RootPath == root {
			folders++
		}
	}
	for _, v := range c.videos {
		if v.RootPath == root {
			videos++
		}
	}
	return folders, videos, nil
}

func (c *memCatalog) GetVideoByPath(_ context.Context, path string) (*models.VideoRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failLookup != nil {
		return nil, c.failLookup
	}
	v, ok := c.videos[path]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (c *memCatalog) GetAudioTrack(_ context.Context, id uuid.UUID) (*models.AudioTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.audio[id]
	if !ok {
		return nil, errNotFound
	}
	return &t, nil
}

func (c *memCatalog) GetSubtitleTrack(_ context.Context, id uuid.UUID) (*models.SubtitleTrack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.subtitles[id]
	if !ok {
		return nil, errNotFound
	}
	return &t, nil
}

func (c *memCatalog) Begin(context.Context) (CatalogTx, error) {
	return &memTx{c: c}, nil
}

// folder returns a copy of a stored folder, or nil.
func (c *memCatalog) folder(root, path string) *models.Folder {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.folders[folderKey(root, path)]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func (c *memCatalog) video(path string) *models.VideoRecord {
	v, _ := c.GetVideoByPath(context.Background(), path)
	return v
}

func (c *memCatalog) audioFor(videoID uuid.UUID) []models.AudioTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.AudioTrack
	for _, t := range c.audio {
		if t.VideoID == videoID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return trackOrder(out[i].Identity()) < trackOrder(out[j].Identity()) })
	return out
}

func (c *memCatalog) subtitlesFor(videoID uuid.UUID) []models.SubtitleTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.SubtitleTrack
	for _, t := range c.subtitles {
		if t.VideoID == videoID {
			out = append(out, t)
		}
	}
	return out
}

func trackOrder(id models.TrackIdentity) string {
	if id.StreamIndex != nil {
		return fmt.Sprintf("a%04d", *id.StreamIndex)
	}
	return "b" + *id.ExternalPath
}

func (c *memCatalog) setUserState(path string, watched int, audio, subtitle uuid.NullUUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.videos[path]
	v.WatchedPercent = watched
	v.SelectedAudioID = audio
	v.SelectedSubtitleID = subtitle
}

type memTx struct {
	c *memCatalog
}

func (t *memTx) UpsertFolder(_ context.Context, f *models.Folder) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	key := folderKey(f.RootPath, f.Path)
	if old, ok := t.c.folders[key]; ok {
		expanded := old.IsExpanded
		*old = *f
		old.IsExpanded = expanded
		return nil
	}
	cp := *f
	cp.ID = uuid.New()
	t.c.folders[key] = &cp
	return nil
}

func (t *memTx) InsertFolderIfMissing(_ context.Context, f *models.Folder) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	key := folderKey(f.RootPath, f.Path)
	if _, ok := t.c.folders[key]; ok {
		return nil
	}
	cp := *f
	cp.ID = uuid.New()
	t.c.folders[key] = &cp
	return nil
}

func (t *memTx) ParentPaths(_ context.Context, root string) ([]string, error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, f := range t.c.folders {
		if f.RootPath == root && f.ParentPath != "" && !seen[f.ParentPath] {
			seen[f.ParentPath] = true
			out = append(out, f.ParentPath)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) UpsertVideo(_ context.Context, v *models.VideoRecord) (uuid.UUID, error) {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.c.failUpsert != nil {
		return uuid.Nil, t.c.failUpsert
	}
	if old, ok := t.c.videos[v.FilePath]; ok {
		keep := *old
		*old = *v
		old.ID = keep.ID
		old.WatchedPercent = keep.WatchedPercent
		old.LastPosition = keep.LastPosition
		old.SelectedAudioID = keep.SelectedAudioID
		old.SelectedSubtitleID = keep.SelectedSubtitleID
		return old.ID, nil
	}
	cp := *v
	cp.ID = uuid.New()
	cp.WatchedPercent, cp.LastPosition = 0, 0
	cp.SelectedAudioID, cp.SelectedSubtitleID = uuid.NullUUID{}, uuid.NullUUID{}
	t.c.videos[v.FilePath] = &cp
	return cp.ID, nil
}

func (t *memTx) ReplaceAudioTracks(_ context.Context, videoID uuid.UUID, tracks []models.AudioTrack) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for id, tr := range t.c.audio {
		if tr.VideoID == videoID {
			delete(t.c.audio, id)
		}
	}
	for i := range tracks {
		tracks[i].ID = uuid.New()
		tracks[i].VideoID = videoID
		t.c.audio[tracks[i].ID] = tracks[i]
	}
	return nil
}

func (t *memTx) ReplaceSubtitleTracks(_ context.Context, videoID uuid.UUID, tracks []models.SubtitleTrack) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for id, tr := range t.c.subtitles {
		if tr.VideoID == videoID {
			delete(t.c.subtitles, id)
		}
	}
	for i := range tracks {
		tracks[i].ID = uuid.New()
		tracks[i].VideoID = videoID
		t.c.subtitles[tracks[i].ID] = tracks[i]
	}
	return nil
}

func (t *memTx) SetSelectedTracks(_ context.Context, videoID uuid.UUID, audio, subtitle uuid.NullUUID) error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for _, v := range t.c.videos {
		if v.ID == videoID {
			v.SelectedAudioID = audio
			v.SelectedSubtitleID = subtitle
			return nil
		}
	}
	return errNotFound
}

func (t *memTx) Commit() error {
	t.c.mu.Lock()
	t.c.commits++
	t.c.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	t.c.mu.Lock()
	t.c.rollbacks++
	t.c.mu.Unlock()
	return nil
}

// fakeProber answers from a table keyed by base name; unknown video files
// get a 100 second single-stream result.
type fakeProber struct {
	mu     sync.Mutex
	videos map[string]*ffmpeg.VideoInfo
	audio  map[string]*ffmpeg.AudioInfo
	calls  int
}

func (p *fakeProber) ProbeVideo(_ context.Context, path string) (*ffmpeg.VideoInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if info, ok := p.videos[filepath.Base(path)]; ok {
		if info == nil {
			return nil, ffmpeg.ErrProbeFailed
		}
		cp := *info
		cp.Audio = append([]models.AudioTrack(nil), info.Audio...)
		cp.Subtitles = append([]models.SubtitleTrack(nil), info.Subtitles...)
		return &cp, nil
	}
	return &ffmpeg.VideoInfo{Duration: 100, Resolution: "1280x720", Codec: "h264"}, nil
}

func (p *fakeProber) ProbeAudio(_ context.Context, path string) (*ffmpeg.AudioInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.audio[filepath.Base(path)]; ok {
		return info, nil
	}
	return nil, ffmpeg.ErrProbeFailed
}

// fakeThumbs "renders" Count paths named after the cache key and remembers
// which keys it rendered.
type fakeThumbs struct {
	mu       sync.Mutex
	count    int
	rendered map[string]int
}

func (f *fakeThumbs) Generate(_ context.Context, req preview.Request) preview.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(req.Existing) == f.count && strings.HasPrefix(filepath.Base(req.Existing[0]), req.CacheKey+"_") {
		return preview.Result{Paths: req.Existing, Cached: f.count}
	}
	if f.rendered == nil {
		f.rendered = make(map[string]int)
	}
	f.rendered[req.CacheKey]++
	var paths []string
	for i := 0; i < f.count; i++ {
		paths = append(paths, fmt.Sprintf("/thumbs/%s_%d.jpg", req.CacheKey, i))
	}
	return preview.Result{Paths: paths, Generated: f.count}
}

func (f *fakeThumbs) renders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.rendered {
		n += c
	}
	return n
}
