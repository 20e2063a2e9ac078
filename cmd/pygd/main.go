// Command pygd is the pygmalion daemon: it owns the store, the request
// scheduler, the worker pool, and the control-channel socket that
// pygscan and the pygmalion CLI talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sfowler/pygmalion/internal/ccexport"
	"github.com/sfowler/pygmalion/internal/config"
	"github.com/sfowler/pygmalion/internal/ctags"
	"github.com/sfowler/pygmalion/internal/daemon"
	"github.com/sfowler/pygmalion/internal/logging"
	"github.com/sfowler/pygmalion/internal/projectroot"
	"github.com/sfowler/pygmalion/internal/query"
	"github.com/sfowler/pygmalion/internal/scheduler"
	"github.com/sfowler/pygmalion/internal/store"
	"github.com/sfowler/pygmalion/internal/workerpool"
)

func main() {
	dir := flag.String("dir", ".", "project root")
	flag.Parse()

	root, err := projectroot.Find(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pygd: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewDefaultLoader().Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pygd: config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := run(root, cfg, logger); err != nil {
		logger.Error("pygd exiting", "error", err)
		os.Exit(1)
	}
}

const (
	openStoreAttempts = 100
	openStoreBackoff  = 500 * time.Millisecond
)

// openStoreWithRetry retries store.Open a bounded number of times before
// giving up. The store file can be transiently locked by another
// process (a previous pygd instance still shutting down, a backup tool)
// immediately after this one starts; a short bounded retry absorbs that
// without turning startup failures into an infinite hang.
func openStoreWithRetry(cfg store.Config, logger *slog.Logger) (*store.Store, error) {
	var lastErr error
	for attempt := 1; attempt <= openStoreAttempts; attempt++ {
		st, err := store.Open(cfg)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if attempt < openStoreAttempts {
			logger.Warn("open store failed, retrying", "attempt", attempt, "error", err)
			time.Sleep(openStoreBackoff)
		}
	}
	return nil, fmt.Errorf("open store after %d attempts: %w", openStoreAttempts, lastErr)
}

func run(root string, cfg config.Config, logger *slog.Logger) error {
	st, err := openStoreWithRetry(store.Config{Path: projectroot.StorePath(root)}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sched := scheduler.New(scheduler.Config{Store: st, Logger: logger})
	go sched.Run()
	defer sched.Shutdown()

	surface := query.New(query.Config{Scheduler: sched})

	pool := workerpool.New(workerpool.Config{
		Command:   "pygclangindex",
		N:         cfg.IndexingThreads,
		Scheduler: sched,
		Logger:    logger,
	})
	defer pool.Close()

	srv, err := daemon.New(daemon.Config{
		SocketPath: projectroot.SocketPath(root),
		Scheduler:  sched,
		Query:      surface,
		Pool:       pool,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx) })

	if cfg.CompilationDatabase {
		watcher, err := ccexport.New(ccexport.Config{
			Scheduler:  sched,
			StoreDir:   root,
			OutputPath: projectroot.CompileCommandsPath(root),
			Logger:     logger,
		})
		if err != nil {
			logger.Warn("compile_commands.json auto-export disabled", "error", err)
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	if cfg.Tags {
		tagsWatcher, err := ctags.New(ctags.Config{
			Scheduler:  sched,
			StoreDir:   root,
			OutputPath: projectroot.TagsPath(root),
			Logger:     logger,
		})
		if err != nil {
			logger.Warn("tags auto-regeneration disabled", "error", err)
		} else {
			g.Go(func() error { return tagsWatcher.Run(gctx) })
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("pygd started", "root", root, "socket", projectroot.SocketPath(root))

	select {
	case s := <-sig:
		logger.Info("pygd received signal, shutting down", "signal", s)
	case <-srv.Stopped():
		logger.Info("pygd received stop request, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Warn("pygd component exited with error", "error", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("pygd shutdown timed out waiting for workers")
	}

	return nil
}
