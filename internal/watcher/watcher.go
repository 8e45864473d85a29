package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OnChange is called with the scan root whose tree changed, after the
// debounce interval passed without further events.
type OnChange func(root string)

// Relevant reports whether a file name is one the scanner cares about.
type Relevant func(name string) bool

// Watcher monitors scan roots for filesystem changes.
type Watcher struct {
	callback OnChange
	relevant Relevant
	watcher  *fsnotify.Watcher
	limiter  *rate.Limiter
	interval time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	roots    []string          // longest first
	watched  map[string]string // dir → root
	debounce map[string]*time.Timer
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

// New creates a filesystem watcher. Triggers are debounced per root and
// limited to one per interval overall.
func New(roots []string, relevant Relevant, interval time.Duration, cb OnChange, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Second
	}
	sorted := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		sorted = append(sorted, filepath.Clean(r))
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	return &Watcher{
		callback: cb,
		relevant: relevant,
		watcher:  fw,
		limiter:  rate.NewLimiter(rate.Every(interval), max(len(sorted), 1)),
		interval: interval,
		log:      log.Named("watcher"),
		roots:    sorted,
		watched:  make(map[string]string),
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start adds every directory under the roots and processes events.
func (w *Watcher) Start() {
	w.mu.Lock()
	for _, root := range w.roots {
		w.addRecursive(root, root)
	}
	n := len(w.watched)
	w.started = true
	w.mu.Unlock()

	go w.eventLoop()
	w.log.Info("filesystem watcher started", zap.Int("dirs", n), zap.Int("roots", len(w.roots)))
}

// Stop stops the watcher and cancels pending triggers.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}

	w.mu.Lock()
	for root, t := range w.debounce {
		t.Stop()
		delete(w.debounce, root)
	}
	w.mu.Unlock()
}

// addRecursive must be called with mu held.
func (w *Watcher) addRecursive(dir, root string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Debug("cannot watch folder", zap.String("dir", path), zap.Error(err))
			return nil
		}
		w.watched[path] = root
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return
	}

	root := w.resolveRoot(event.Name)
	if root == "" {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			w.addRecursive(event.Name, root)
			w.mu.Unlock()
			w.schedule(root)
			return
		}
	}

	w.mu.Lock()
	_, wasDir := w.watched[event.Name]
	if wasDir && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		delete(w.watched, event.Name)
	}
	w.mu.Unlock()

	if wasDir || w.relevant == nil || w.relevant(event.Name) {
		w.schedule(root)
	}
}

// schedule (re)starts the debounce timer of root.
func (w *Watcher) schedule(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounce[root]; ok {
		t.Stop()
	}
	w.debounce[root] = time.AfterFunc(w.interval, func() { w.fire(root) })
}

func (w *Watcher) fire(root string) {
	select {
	case <-w.stop:
		return
	default:
	}

	w.mu.Lock()
	delete(w.debounce, root)
	w.mu.Unlock()

	if !w.limiter.Allow() {
		w.log.Debug("trigger limited, retrying later", zap.String("root", root))
		w.schedule(root)
		return
	}
	w.log.Info("change detected", zap.String("root", root))
	w.callback(root)
}

// resolveRoot returns the configured root that contains path, or "".
func (w *Watcher) resolveRoot(path string) string {
	path = filepath.Clean(path)
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}
