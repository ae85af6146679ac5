package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits after the last change before reloading.
const DefaultSettle = 200 * time.Millisecond

// Watcher reloads a Recognizer's model when the model or labels file changes.
type Watcher struct {
	rec        *Recognizer
	modelPath  string
	labelsPath string
	settle     time.Duration
	poll       time.Duration
	log        *slog.Logger

	// OnReload is called after each reload attempt.
	OnReload func(err error)
}

// NewWatcher creates a Watcher for the given files.
func NewWatcher(rec *Recognizer, modelPath, labelsPath string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		rec:        rec,
		modelPath:  filepath.Clean(modelPath),
		labelsPath: filepath.Clean(labelsPath),
		settle:     DefaultSettle,
		poll:       2 * time.Second,
		log:        logger.With("component", "model-watcher"),
	}
}

// Reload loads the files and installs the model. On failure the current
// model stays active.
func (w *Watcher) Reload() error {
	m, labels, err := Load(w.modelPath, w.labelsPath)
	if err != nil {
		if errors.Is(err, ErrNoModel) {
			w.log.Info("no gesture model found", "path", w.modelPath)
		} else {
			w.log.Warn("model reload failed", "path", w.modelPath, "error", err)
		}
	} else {
		w.rec.SetModel(m, labels)
		w.log.Info("gesture model loaded", "path", w.modelPath, "labels", len(labels))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
	return err
}

// Run watches until ctx is done. It falls back to polling modification
// times when fsnotify is unavailable.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify not available, falling back to polling", "error", err)
		return w.runPolling(ctx)
	}
	defer fw.Close()

	dirs := map[string]bool{
		filepath.Dir(w.modelPath):  true,
		filepath.Dir(w.labelsPath): true,
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
		if err := fw.Add(dir); err != nil {
			w.log.Warn("failed to watch model directory, falling back to polling", "dir", dir, "error", err)
			return w.runPolling(ctx)
		}
	}

	var (
		settle  *time.Timer
		settleC <-chan time.Time
	)
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return w.runPolling(ctx)
			}
			if !w.relevant(event) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(w.settle)
			} else {
				settle.Reset(w.settle)
			}
			settleC = settle.C

		case err, ok := <-fw.Errors:
			if !ok {
				return w.runPolling(ctx)
			}
			w.log.Warn("model watcher error", "error", err)

		case <-settleC:
			settleC = nil
			w.Reload()
		}
	}
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	name := filepath.Clean(e.Name)
	if name != w.modelPath && name != w.labelsPath {
		return false
	}
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create) || e.Has(fsnotify.Rename)
}

func (w *Watcher) runPolling(ctx context.Context) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	last := w.modTimes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur := w.modTimes()
			if cur != last {
				last = cur
				w.Reload()
			}
		}
	}
}

func (w *Watcher) modTimes() [2]time.Time {
	var out [2]time.Time
	for i, p := range []string{w.modelPath, w.labelsPath} {
		if fi, err := os.Stat(p); err == nil {
			out[i] = fi.ModTime()
		}
	}
	return out
}
