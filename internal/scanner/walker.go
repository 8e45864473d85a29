package scanner

import (
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/JustinTDCT/CourseVault/internal/config"
	"github.com/JustinTDCT/CourseVault/internal/natsort"
)

// Extensions are the file kinds the walker sorts directory entries into.
type Extensions struct {
	Video    config.ExtensionSet
	Audio    config.ExtensionSet
	Subtitle config.ExtensionSet
}

// VideoFolder is a directory that directly contains at least one video.
// File lists hold base names; Videos is in natural order.
type VideoFolder struct {
	Dir       string // absolute
	RelPath   string // slash separated, "." for the root
	Videos    []string
	Audio     []string
	Subtitles []string
}

// Name is the display name of the folder.
func (f VideoFolder) Name() string {
	return filepath.Base(f.Dir)
}

// ParentPath is the relative path of the parent folder, "" for the root and
// top-level folders.
func (f VideoFolder) ParentPath() string {
	return parentOf(f.RelPath)
}

func parentOf(rel string) string {
	if rel == "." || rel == "" {
		return ""
	}
	p := path.Dir(rel)
	if p == "." {
		return ""
	}
	return p
}

type walker struct {
	exts    Extensions
	log     *zap.Logger
	skipped int
}

// WalkFolders finds every directory under root, root included, that directly
// holds a video file. Directories that cannot be read are logged and skipped
// along with their subtree; the returned count says how many.
func WalkFolders(root string, exts Extensions, log *zap.Logger) ([]VideoFolder, int) {
	w := &walker{exts: exts, log: log}
	var folders []VideoFolder
	w.walk(root, ".", &folders)

	sort.SliceStable(folders, func(i, j int) bool {
		return natsort.ComparePath(folders[i].RelPath, folders[j].RelPath) < 0
	})
	return folders, w.skipped
}

func (w *walker) walk(dir, rel string, out *[]VideoFolder) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skipped++
		w.log.Warn("skipping unreadable folder", zap.String("dir", dir), zap.Error(err))
		return
	}

	folder := VideoFolder{Dir: dir, RelPath: rel}
	var subdirs []string
	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(dir, name)
		if e.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if !isRegular(e, full) {
			continue
		}
		switch {
		case w.exts.Video.Has(name):
			folder.Videos = append(folder.Videos, name)
		case w.exts.Audio.Has(name):
			folder.Audio = append(folder.Audio, name)
		case w.exts.Subtitle.Has(name):
			folder.Subtitles = append(folder.Subtitles, name)
		}
	}

	if len(folder.Videos) > 0 {
		natsort.Strings(folder.Videos)
		natsort.Strings(folder.Audio)
		natsort.Strings(folder.Subtitles)
		*out = append(*out, folder)
	}

	for _, name := range subdirs {
		childRel := name
		if rel != "." {
			childRel = rel + "/" + name
		}
		w.walk(filepath.Join(dir, name), childRel, out)
	}
}

// isRegular follows symlinks so linked files count, linked directories don't
// get descended into.
func isRegular(e os.DirEntry, full string) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}
