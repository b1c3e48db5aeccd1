// Package watch monitors the dataset directory and triggers a reload and
// retrain when the user or hotel files change on disk. Events are debounced
// so an editor save (write + rename + chmod) produces a single rebuild.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultDebounce is the interval changes are coalesced over before a
// rebuild fires.
const DefaultDebounce = 500 * time.Millisecond

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoPathConfigured indicates no watch directory was specified.
	ErrNoPathConfigured = errors.New("watch: no directory configured")

	// ErrPathNotDirectory indicates the watch path is not a directory.
	ErrPathNotDirectory = errors.New("watch: path is not a directory")

	// ErrInvalidPattern indicates an include pattern could not be compiled.
	ErrInvalidPattern = errors.New("watch: invalid include pattern")
)

// =============================================================================
// Config
// =============================================================================

// Config configures the dataset watcher.
type Config struct {
	// Dir is the directory holding the dataset files.
	Dir string `yaml:"dir"`

	// Patterns are glob patterns for file names that trigger a rebuild.
	// Defaults to *.json.
	Patterns []string `yaml:"patterns"`

	// Debounce is how long to wait after the last change before rebuilding.
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a watcher configuration for the given dataset dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:      dir,
		Patterns: []string{"*.json"},
		Debounce: DefaultDebounce,
	}
}

func (c *Config) validate() error {
	if c.Dir == "" {
		return ErrNoPathConfigured
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrPathNotDirectory
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if len(c.Patterns) == 0 {
		c.Patterns = []string{"*.json"}
	}
	return nil
}

// =============================================================================
// Watcher
// =============================================================================

// RebuildFunc is invoked after changes settle. It receives the paths that
// changed during the debounce window.
type RebuildFunc func(ctx context.Context, changed []string) error

// Watcher drives dataset rebuilds from file system events.
type Watcher struct {
	cfg      Config
	watcher  *fsnotify.Watcher
	includes []glob.Glob
	rebuild  RebuildFunc
	logger   *slog.Logger

	mu      sync.Mutex
	changed map[string]struct{}
	timer   *time.Timer
	fireCh  chan []string
}

// New creates a watcher for the configured directory. rebuild is called
// from the watcher's own goroutine, never concurrently with itself.
func New(cfg Config, rebuild RebuildFunc, logger *slog.Logger) (*Watcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	includes := make([]glob.Glob, 0, len(cfg.Patterns))
	for _, pattern := range cfg.Patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		includes = append(includes, g)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cfg.Dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		cfg:      cfg,
		watcher:  fw,
		includes: includes,
		rebuild:  rebuild,
		logger:   logger,
		changed:  make(map[string]struct{}),
		fireCh:   make(chan []string, 1),
	}, nil
}

// Run processes events until the context is cancelled. Rebuild failures are
// logged and the watcher keeps running; the previous snapshot and model stay
// in service.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	w.logger.Info("watching dataset directory",
		slog.String("dir", w.cfg.Dir),
		slog.Duration("debounce", w.cfg.Debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))

		case changed := <-w.fireCh:
			w.runRebuild(ctx, changed)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Rename) {
		return
	}
	if !w.matches(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.changed[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, w.flush)
}

// flush moves the accumulated change set onto the fire channel. Runs on the
// timer goroutine; the rebuild itself happens on the Run loop.
func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.changed))
	for path := range w.changed {
		changed = append(changed, path)
	}
	w.changed = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	select {
	case w.fireCh <- changed:
	default:
		// A rebuild is already queued; the next event cycle picks these up.
		w.mu.Lock()
		for _, path := range changed {
			w.changed[path] = struct{}{}
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) runRebuild(ctx context.Context, changed []string) {
	start := time.Now()
	w.logger.Info("dataset changed, rebuilding", slog.Int("files", len(changed)))

	if err := w.rebuild(ctx, changed); err != nil {
		w.logger.Error("rebuild failed, keeping previous snapshot",
			slog.Any("error", err))
		return
	}

	w.logger.Info("rebuild complete", slog.Duration("took", time.Since(start)))
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.includes {
		if g.Match(base) || g.Match(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}
