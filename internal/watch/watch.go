// Package watch re-runs a title's pipeline when its source images change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the subset of the logging API the watcher uses.
type Logger interface {
	Info(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// RunFunc processes one title. It is never called concurrently for the same
// title.
type RunFunc func(ctx context.Context, title string)

// triggerExts are the source extensions that schedule a run.
var triggerExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Watcher monitors title directories and schedules debounced runs.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      Logger
	run      RunFunc
	debounce time.Duration

	roots map[string]string // cleaned main dir -> title

	mu       sync.Mutex
	timers   map[string]*time.Timer
	triggers map[string]chan struct{}
}

// New creates a watcher for the given title main directories (title name to
// directory). Call Run to start it.
func New(dirs map[string]string, debounce time.Duration, log Logger, run RunFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		log:      log,
		run:      run,
		debounce: debounce,
		roots:    make(map[string]string, len(dirs)),
		timers:   make(map[string]*time.Timer),
		triggers: make(map[string]chan struct{}),
	}
	for title, dir := range dirs {
		dir = filepath.Clean(dir)
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.roots[dir] = title
		w.triggers[title] = make(chan struct{}, 1)
	}
	return w, nil
}

// Run processes events until ctx is cancelled, then closes the underlying
// watcher. A run in progress is allowed to finish.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	for title, ch := range w.triggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(ctx, title, ch)
		}()
	}

	w.log.Info("Watching %d title(s) for changes (Ctrl+C to stop)", len(w.roots))
	defer func() {
		cancel()
		w.stopTimers()
		w.fs.Close()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error: %v", err)
		}
	}
}

// worker serializes runs for one title. The trigger channel holds at most
// one pending run, so bursts during a run coalesce into a single rerun.
func (w *Watcher) worker(ctx context.Context, title string, ch <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if ctx.Err() != nil {
				return
			}
			w.run(ctx, title)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("Cannot watch new directory %s: %v", event.Name, err)
			}
			// Files copied in with the directory produce no events of their own.
			if title, ok := w.titleFor(event.Name); ok {
				w.schedule(title)
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !relevant(event.Name) {
		return
	}
	title, ok := w.titleFor(event.Name)
	if !ok {
		return
	}
	w.log.Debug("Change detected: %s", event.Name)
	w.schedule(title)
}

// schedule (re)starts the title's debounce timer.
func (w *Watcher) schedule(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[title]; ok {
		t.Stop()
	}
	w.timers[title] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, title)
		w.mu.Unlock()

		select {
		case w.triggers[title] <- struct{}{}:
		default: // a run is already pending
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for title, t := range w.timers {
		t.Stop()
		delete(w.timers, title)
	}
}

// titleFor maps a path inside a watched tree to its title.
func (w *Watcher) titleFor(path string) (string, bool) {
	path = filepath.Clean(path)
	for root, title := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return title, true
		}
	}
	return "", false
}

// addTree watches dir and every directory below it. Hidden directories are
// skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// relevant reports whether a change to path should trigger a run: a
// non-hidden source image. Generated WebP files never qualify.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return triggerExts[strings.ToLower(filepath.Ext(base))]
}
