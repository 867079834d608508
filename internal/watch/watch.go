// Package watch re-runs the synchronization whenever a document or the page
// template changes on disk.
//
// Events are collected into a change queue and flushed once no new event has
// arrived for the debounce interval, so an editor saving several files at
// once triggers a single run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one synchronization.
type RunFunc func(ctx context.Context) error

// Config holds configuration for the watcher.
type Config struct {
	// Dir is the document directory.
	Dir string
	// Extension selects which files in Dir are documents.
	Extension string
	// Files are additional individual files to watch, such as the page
	// template.
	Files []string

	// DebounceInterval is how long the queue must be quiet before a run.
	DebounceInterval time.Duration

	// SkipInitialRun disables the run performed before watching starts.
	SkipInitialRun bool

	Logger *log.Logger
}

// DefaultDebounceInterval batches bursts of editor writes.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher runs a RunFunc on file changes.
type Watcher struct {
	cfg     Config
	run     RunFunc
	watcher *fsnotify.Watcher
	files   map[string]struct{}

	changeQueue   map[string]time.Time
	changeQueueMu sync.Mutex
}

// New creates a Watcher and registers its watches, so changes made after New
// returns are seen by Run. Call Close if Run is never called.
func New(cfg Config, run RunFunc) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory cannot be empty")
	}
	if run == nil {
		return nil, errors.New("run function cannot be nil")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounceInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		if f == "" {
			continue
		}
		files[absPath(f)] = struct{}{}
	}

	w := &Watcher{
		cfg:         cfg,
		run:         run,
		watcher:     watcher,
		files:       files,
		changeQueue: make(map[string]time.Time),
	}
	if err := w.addWatches(); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addWatches() error {
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.cfg.Dir, err)
	}
	// Individual files are watched through their directory so that editors
	// replacing the file by rename keep being noticed.
	for f := range w.files {
		dir := filepath.Dir(f)
		if dir == absPath(w.cfg.Dir) {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", f, err)
		}
	}
	return nil
}

// Close releases the watches of a Watcher whose Run was never called.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run watches until ctx is cancelled. Errors from individual runs are
// logged and watching continues. It returns ctx.Err() on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if !w.cfg.SkipInitialRun {
		w.runOnce(ctx, nil)
	}
	w.cfg.Logger.Printf("Watching %s for changes", w.cfg.Dir)

	ticker := time.NewTicker(w.cfg.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Println("Stopping watcher")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.queueChange(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Printf("Watcher error: %v", err)

		case <-ticker.C:
			if changed := w.takeSettledChanges(); len(changed) > 0 {
				w.runOnce(ctx, changed)
			}
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, changed []string) {
	if len(changed) > 0 {
		w.cfg.Logger.Printf("Changes detected: %s", strings.Join(changed, ", "))
	}
	if err := w.run(ctx); err != nil {
		w.cfg.Logger.Printf("Sync failed: %v", err)
	}
}

// relevant reports whether event concerns a document or a watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	path := absPath(event.Name)
	if _, ok := w.files[path]; ok {
		return true
	}
	if filepath.Dir(path) != absPath(w.cfg.Dir) {
		return false
	}
	return w.cfg.Extension == "" || strings.HasSuffix(path, w.cfg.Extension)
}

func (w *Watcher) queueChange(path string) {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()

	w.changeQueue[filepath.Base(path)] = time.Now()
}

// takeSettledChanges empties the queue if its newest entry is older than the
// debounce interval.
func (w *Watcher) takeSettledChanges() []string {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()

	if len(w.changeQueue) == 0 {
		return nil
	}
	now := time.Now()
	for _, queuedAt := range w.changeQueue {
		if now.Sub(queuedAt) < w.cfg.DebounceInterval {
			return nil
		}
	}

	names := make([]string, 0, len(w.changeQueue))
	for name := range w.changeQueue {
		names = append(names, name)
	}
	sort.Strings(names)
	w.changeQueue = make(map[string]time.Time)
	return names
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
