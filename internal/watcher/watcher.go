// Package watcher reports files that appear in, or disappear from, a
// directory tree once they have finished being written.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher debounces fsnotify events: a created or written file is reported
// only after its size and modification time hold still for SettleDelay.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingFile
	closed  bool

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

// pendingFile tracks a file that may still be changing.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher. Call Watch for each root, then Run.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*pendingFile),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a directory and all of its subdirectories.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", root)
	}
	return w.watchTree(root)
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("added watch", "path", path)
		return nil
	})
}

// Events returns the channel of settled events. It is never closed; stop
// reading once Run has returned.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run processes file system notifications until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name
	if w.opts.ignored(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.cancel(path) || w.opts.accepts(path) {
			w.emit(Event{Type: EventRemoved, Path: path})
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			// New subdirectory: watch it and pick up files already inside.
			if err := w.watchTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			w.settleExisting(path)
			return
		}
		if w.opts.accepts(path) {
			w.settle(path, info)
		}
	}
}

// settleExisting schedules every accepted file under dir, for directories
// moved into the tree in one piece.
func (w *Watcher) settleExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || w.opts.ignored(path) || !w.opts.accepts(path) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			w.settle(path, info)
		}
		return nil
	})
}

// settle (re)starts the settle timer for path.
func (w *Watcher) settle(path string, info fs.FileInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.pending[path] = &pendingFile{
		size:    info.Size(),
		modTime: info.ModTime(),
		timer:   time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) }),
	}
}

// check emits the file if it has not changed since the last look.
func (w *Watcher) check(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) })
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	w.emit(Event{Type: EventAdded, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

// cancel drops a pending file and reports whether one existed.
func (w *Watcher) cancel(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
	return ok
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// Stop releases the fsnotify watcher and makes Run return. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
