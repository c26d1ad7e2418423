// file: internal/store/watcher.go
package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/dkoosis/promptd/internal/logging"
)

// Watcher keeps a store in sync with a recipe directory. Filesystem events
// are debounced and coalesced into a full directory rescan which is then
// committed with SwapAll, so every reload is atomic from a reader's point of
// view. The directory remains the single source of truth for published
// templates while the watcher runs.
type Watcher struct {
	store        *Store
	dir          string
	watcher      *fsnotify.Watcher
	logger       logging.Logger
	debounceTime time.Duration

	mu      sync.Mutex
	pending bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the given recipe directory. Call Start to
// begin watching and Stop to release the underlying notifier.
func NewWatcher(s *Store, dir string, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filesystem watcher")
	}
	return &Watcher{
		store:        s,
		dir:          dir,
		watcher:      notifier,
		logger:       logger.WithField("component", "recipe_watcher"),
		debounceTime: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the recipe directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return errors.Wrapf(err, "failed to watch recipe directory %q", w.dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(2)
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("Watching recipe directory.", "dir", w.dir)
	return nil
}

// Stop stops the watcher and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.watcher.Close()
}

// eventLoop marks a rescan pending whenever a recipe file changes.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isRecipePath(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Filesystem watcher error.", "error", err)
		}
	}
}

// debounceLoop performs at most one rescan per debounce interval.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			pending := w.pending
			w.pending = false
			w.mu.Unlock()
			if pending {
				w.reload()
			}
		}
	}
}

// reload rescans the directory and swaps the store index atomically.
func (w *Watcher) reload() {
	families, err := ScanDir(w.dir, w.logger)
	if err != nil {
		w.logger.Error("Recipe reload failed; keeping current index.", "dir", w.dir, "error", err)
		return
	}
	w.store.SwapAll(families)
	w.logger.Info("Recipe reload committed.", "families", len(families))
}

// isRecipePath reports whether a path names a recipe file.
func isRecipePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
