// Package watcher re-imports markdown files when they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches import roots and invokes a callback for changed markdown
// files. File removals are deliberately ignored: documents only leave the
// stores through an explicit clear.
type Watcher struct {
	roots     []string
	recursive bool
	onChange  func(root, path string)
	debounce  time.Duration
	logger    *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	rootOf      map[string]string // watched dir -> owning root
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewWatcher creates a watcher over roots. onChange receives the owning root
// and the changed file path.
func NewWatcher(roots []string, recursive bool, onChange func(root, path string), logger *zap.Logger) *Watcher {
	return &Watcher{
		roots:       roots,
		recursive:   recursive,
		onChange:    onChange,
		debounce:    defaultDebounce,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		rootOf:      make(map[string]string),
		done:        make(chan struct{}),
	}
}

// Start starts watching. It returns immediately; events are handled until ctx
// is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	for _, root := range w.roots {
		if err := w.addDirsLocked(root, root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	w.logger.Info("watching for changes", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	go w.run(ctx)
	return nil
}

func (w *Watcher) addDirsLocked(root, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.rootOf[dir] = root
	if !w.recursive {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == dir {
			return err
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.rootOf[path] = root
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.mu.Lock()
		root := w.rootOf[filepath.Dir(path)]
		if root != "" && w.recursive {
			if err := w.addDirsLocked(root, path); err != nil {
				w.logger.Debug("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
		}
		w.mu.Unlock()
		return
	}
	if !isMarkdown(path) {
		return
	}
	w.debounceChange(path)
}

// debounceChange coalesces rapid write events for the same file into one
// callback after the debounce interval.
func (w *Watcher) debounceChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	root := w.rootOf[filepath.Dir(path)]
	if root == "" {
		return
	}
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("file changed", zap.String("path", path))
		w.onChange(root, path)
	})
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		close(w.done)
		for path, timer := range w.debounceMap {
			timer.Stop()
			delete(w.debounceMap, path)
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
