package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last change before the
// rebuild callback runs.
const DefaultDebounce = 250 * time.Millisecond

// ChangeHandler receives the base names of the data files touched in one
// debounced burst, sorted.
type ChangeHandler func(files []string)

// Watcher watches the data directory and triggers a rebuild once a burst of
// changes to the YAML data files settles.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  ChangeHandler
	logger   *zap.Logger
}

// NewWatcher creates a Watcher for dir. A non-positive debounce selects
// DefaultDebounce.
func NewWatcher(dir string, debounce time.Duration, handler ChangeHandler, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. A missing data directory is created
// first, since a new project has no data files yet. It returns nil on
// cancellation and an error only when the watch cannot be established or
// fsnotify fails fatally.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("creating data directory %s: %w", w.dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Debug("watching data directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isDataFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[filepath.Base(event.Name)] = struct{}{}
			timer.Reset(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)
			w.logger.Debug("data files changed", zap.Strings("files", files))
			if w.handler != nil {
				w.handler(files)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// isDataFile accepts the YAML inputs and skips the temp and lock files the
// stores write beside them.
func isDataFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".yaml" || ext == ".yml"
}
