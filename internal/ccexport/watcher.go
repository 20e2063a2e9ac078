package ccexport

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sfowler/pygmalion/internal/projectroot"
	"github.com/sfowler/pygmalion/internal/scheduler"
)

// Watcher regenerates compile_commands.json a fixed delay after the
// store file's directory settles, so a burst of index writes produces
// one export instead of one per write. Grounded on the same debounced,
// single-timer-per-path idiom the indexing pipeline's file watcher
// uses, here collapsed to the single path being watched: the store's
// directory.
type Watcher struct {
	fsw        *fsnotify.Watcher
	sched      *scheduler.Scheduler
	outputPath string
	debounce   time.Duration
	log        *slog.Logger

	mu      sync.Mutex
	pending *time.Timer
}

// Config configures New.
type Config struct {
	Scheduler     *scheduler.Scheduler
	StoreDir      string
	OutputPath    string
	DebounceDelay time.Duration // default 500ms
	Logger        *slog.Logger
}

// New creates a Watcher on cfg.StoreDir. Call Run to start it.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ccexport: create watcher: %w", err)
	}
	abs, err := filepath.Abs(cfg.StoreDir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("ccexport: resolve store dir: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("ccexport: watch %s: %w", abs, err)
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		fsw:        fsw,
		sched:      cfg.Scheduler,
		outputPath: cfg.OutputPath,
		debounce:   debounce,
		log:        logger,
	}, nil
}

// Run watches until ctx is canceled. Every Write/Create event on the
// store file or its -wal/-shm/-journal companions resets the debounce
// timer; the export only runs once the store has been quiet for the
// debounce delay. Other files in the directory, including the export's
// own output, are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.pending != nil {
				w.pending.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("ccexport: watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), filepath.Base(projectroot.StorePath(""))) {
				continue
			}
			w.scheduleExport()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("ccexport: watcher errors channel closed")
			}
			w.log.Warn("ccexport watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleExport() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		if err := Export(w.sched, w.outputPath); err != nil {
			w.log.Error("compile_commands.json export failed", "error", err)
		}
	})
}
