// Package ctags serializes the store's known definitions to a
// vi/ex-compatible tags file, and optionally keeps it fresh with a
// debounced watch on the store file's directory. Grounded on the same
// structure internal/ccexport uses for compile_commands.json: one
// export function driven by the scheduler's read queries, one Watcher
// wrapping it in a debounce timer.
package ctags

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sfowler/pygmalion/internal/projectroot"
	"github.com/sfowler/pygmalion/internal/scheduler"
)

// entry is one generated tag: a symbol name, the file and line it is
// defined at, and the ctags kind letter derived from its DefInfo.Kind.
type entry struct {
	name string
	file string
	line int
	kind string
}

// Export writes a sorted tags file to outputPath, covering every
// definition reachable from the store's indexed source files.
func Export(sched *scheduler.Scheduler, outputPath string) error {
	files := <-sched.ListSourceFiles()
	if files.Err != nil {
		return fmt.Errorf("ctags: list source files: %w", files.Err)
	}

	var entries []entry
	for _, ci := range files.Infos {
		defs := <-sched.GetDefinitionsInFile(ci.SourceFile)
		if defs.Err != nil {
			return fmt.Errorf("ctags: definitions in %s: %w", ci.SourceFile, defs.Err)
		}
		for _, d := range defs.Defs {
			entries = append(entries, entry{
				name: d.Name,
				file: d.Location.File,
				line: d.Location.Line,
				kind: tagKind(d.Kind),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}
		return entries[i].file < entries[j].file
	})

	var b strings.Builder
	b.WriteString("!_TAG_FILE_FORMAT\t2\t/extended format/\n")
	b.WriteString("!_TAG_FILE_SORTED\t1\t/0=unsorted, 1=sorted, 2=foldcase/\n")
	for _, e := range entries {
		if e.name == "" {
			continue
		}
		fmt.Fprintf(&b, "%s\t%s\t%d;\"\tkind:%s\n", e.name, e.file, e.line, e.kind)
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("ctags: write %s: %w", outputPath, err)
	}
	return nil
}

// tagKind maps a fact.DefInfo.Kind produced by internal/cindex onto the
// single-letter kind ctags readers (vim, emacs) expect.
func tagKind(defKind string) string {
	switch defKind {
	case "FunctionDecl", "CXXMethodDecl":
		return "f"
	case "FieldDecl":
		return "m"
	case "CXXRecordDecl":
		return "c"
	case "EnumConstantDecl":
		return "e"
	default:
		return "v"
	}
}

// Watcher regenerates a tags file a fixed delay after the store file's
// directory settles, mirroring internal/ccexport's debounced watcher
// so a burst of index writes produces one regeneration instead of one
// per write.
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
		return nil, fmt.Errorf("ctags: create watcher: %w", err)
	}
	abs, err := filepath.Abs(cfg.StoreDir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("ctags: resolve store dir: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("ctags: watch %s: %w", abs, err)
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
// debounce delay. Other files in the directory, including the tags
// file itself, are ignored.
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
				return fmt.Errorf("ctags: watcher events channel closed")
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
				return fmt.Errorf("ctags: watcher errors channel closed")
			}
			w.log.Warn("ctags watcher error", "error", err)
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
			w.log.Error("tags file export failed", "error", err)
		}
	})
}
