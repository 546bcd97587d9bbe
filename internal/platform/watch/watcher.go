// Package watch reloads stores when their documents are changed by another
// process.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kislikjeka/quicktrade/pkg/logger"
)

// DefaultInterval is the default interval between polls
const DefaultInterval = 2 * time.Second

// Stater reports the modification time and size of a document
type Stater interface {
	ModTime(name string) (mod time.Time, size int64, exists bool, err error)
}

// Target is a document and the function that reloads its store
type Target struct {
	Document string
	Reload   func() error
}

type fingerprint struct {
	mod    time.Time
	size   int64
	exists bool
}

// Watcher polls documents and reloads their stores when they change.
// With a notify directory configured, filesystem events trigger a poll
// between ticks.
type Watcher struct {
	dir       Stater
	interval  time.Duration
	notifyDir string
	logger    *logger.Logger

	mu      sync.Mutex
	targets []Target
	seen    map[string]fingerprint
}

// Config holds configuration for the watcher
type Config struct {
	Interval time.Duration
	// NotifyDir is the directory holding the documents. Empty disables
	// filesystem notifications and leaves only the ticker.
	NotifyDir string
	Logger    *logger.Logger
}

// NewWatcher creates a new watcher
func NewWatcher(dir Stater, targets []Target, config *Config) *Watcher {
	interval := DefaultInterval
	notifyDir := ""
	log := logger.NewDiscard()

	if config != nil {
		if config.Interval > 0 {
			interval = config.Interval
		}
		if config.Logger != nil {
			log = config.Logger
		}
		notifyDir = config.NotifyDir
	}

	return &Watcher{
		dir:       dir,
		targets:   targets,
		interval:  interval,
		notifyDir: notifyDir,
		logger:    log.WithField("component", "document_watcher"),
		seen:      make(map[string]fingerprint),
	}
}

// Run records the current state of every document and polls until the
// context is cancelled
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("document watcher started", "interval", w.interval, "documents", len(w.snapshotTargets()))
	w.Prime()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if notifier := w.openNotifier(); notifier != nil {
		defer notifier.Close()
		events, errs = notifier.Events, notifier.Errors
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("document watcher stopped")
			return
		case <-ticker.C:
			w.Poll()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.watches(filepath.Base(ev.Name)) {
				w.Poll()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("filesystem notification error", "error", err)
		}
	}
}

// openNotifier returns nil when notifications are disabled or unavailable;
// the ticker still covers every change.
func (w *Watcher) openNotifier() *fsnotify.Watcher {
	if w.notifyDir == "" {
		return nil
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
		return nil
	}
	if err := notifier.Add(w.notifyDir); err != nil {
		w.logger.Warn("failed to watch config directory, polling only", "dir", w.notifyDir, "error", err)
		_ = notifier.Close()
		return nil
	}
	return notifier
}

// Prime records the current state of every document without reloading
func (w *Watcher) Prime() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		if fp, err := w.stat(t.Document); err == nil {
			w.seen[t.Document] = fp
		}
	}
}

// Poll reloads every document whose state changed since the last poll and
// returns how many were reloaded
func (w *Watcher) Poll() int {
	reloaded := 0
	for _, t := range w.snapshotTargets() {
		if !w.changed(t.Document) {
			continue
		}
		if err := t.Reload(); err != nil {
			w.logger.Error("failed to reload changed document", "document", t.Document, "error", err)
			continue
		}
		w.logger.Info("reloaded changed document", "document", t.Document)
		reloaded++
	}
	return reloaded
}

// changed records the current fingerprint of name and reports whether it
// differs from the previous one. The fingerprint is recorded even when the
// following reload fails, so a broken file is reported once, not on every
// tick.
func (w *Watcher) changed(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	fp, err := w.stat(name)
	if err != nil {
		w.logger.Warn("failed to stat document", "document", name, "error", err)
		return false
	}
	if prev, ok := w.seen[name]; ok && prev == fp {
		return false
	}
	w.seen[name] = fp
	return true
}

// Add registers more targets. Call it before Run, or the new targets are
// reloaded once on the next poll.
func (w *Watcher) Add(targets ...Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets = append(w.targets, targets...)
}

// Observe runs write and records the resulting state of the document as
// already loaded. Polls wait for it, so a write is never mistaken for an
// external change.
func (w *Watcher) Observe(name string, write func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := write(); err != nil {
		return err
	}
	if fp, err := w.stat(name); err == nil {
		w.seen[name] = fp
	}
	return nil
}

func (w *Watcher) snapshotTargets() []Target {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Target(nil), w.targets...)
}

func (w *Watcher) watches(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		if t.Document == name {
			return true
		}
	}
	return false
}

func (w *Watcher) stat(name string) (fingerprint, error) {
	mod, size, exists, err := w.dir.ModTime(name)
	if err != nil {
		return fingerprint{}, err
	}
	return fingerprint{mod: mod, size: size, exists: exists}, nil
}
