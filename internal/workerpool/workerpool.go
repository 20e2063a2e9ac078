// Package workerpool supervises the semantic-index worker subprocesses:
// N persistent processes, each driven by its own goroutine over the
// turn-based protocol in internal/wireproto, relaying every fact a
// worker streams back into the request scheduler as an update.
package workerpool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/scheduler"
	"github.com/sfowler/pygmalion/internal/wireproto"
)

// Config configures a Pool.
type Config struct {
	// Command is the semantic-index worker executable, e.g. pygclangindex.
	Command string
	Args    []string
	// N is the number of concurrent worker subprocesses. Zero means
	// "all cores".
	N         int
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
}

// Pool owns the worker subprocess supervision goroutines and the job
// queue they drain.
type Pool struct {
	command string
	args    []string
	n       int
	sched   *scheduler.Scheduler
	log     *slog.Logger
	jobs    chan fact.CommandInfo
}

// New creates a Pool. Call Submit to enqueue translation units and Run
// (typically in its own goroutine) to start the subprocess supervisors.
func New(cfg Config) *Pool {
	n := cfg.N
	if n <= 0 {
		n = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		command: cfg.Command,
		args:    cfg.Args,
		n:       n,
		sched:   cfg.Scheduler,
		log:     logger,
		jobs:    make(chan fact.CommandInfo, 4096),
	}
}

// Submit enqueues a translation unit for indexing. Blocks once 4096 jobs
// are waiting; unlike the scheduler's queues, this one is bounded.
func (p *Pool) Submit(ci fact.CommandInfo) {
	p.jobs <- ci
}

// Run starts N worker supervisor goroutines and blocks until ctx is
// canceled or a worker fails to even start (a worker dying mid-turn is
// not fatal to the pool -- it is respawned).
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		id := i
		g.Go(func() error { return p.superviseWorker(gctx, id) })
	}
	return g.Wait()
}

// Close signals no more jobs are coming; workers exit once the queue
// drains.
func (p *Pool) Close() {
	close(p.jobs)
}

type subprocess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func (p *Pool) spawn(ctx context.Context) (*subprocess, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	return &subprocess{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (s *subprocess) close() {
	s.stdin.Close()
	s.cmd.Wait()
}

// superviseWorker owns one worker subprocess for the goroutine's
// lifetime, restarting it whenever it exits outside a clean Shutdown.
func (p *Pool) superviseWorker(ctx context.Context, id int) error {
	proc, err := p.spawn(ctx)
	if err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	defer proc.close()

	for {
		select {
		case <-ctx.Done():
			wireproto.WriteShutdownRequest(proc.stdin)
			return ctx.Err()
		case ci, ok := <-p.jobs:
			if !ok {
				wireproto.WriteShutdownRequest(proc.stdin)
				return nil
			}
			if err := p.analyzeOne(proc.stdin, proc.stdout, ci); err != nil {
				p.log.Error("worker exited outside shutdown, restarting", "worker", id, "file", ci.SourceFile, "error", err)
				proc.close()
				proc, err = p.spawn(ctx)
				if err != nil {
					return fmt.Errorf("respawn worker %d: %w", id, err)
				}
			}
		}
	}
}

// analyzeOne drives one full Analyze turn: reset the file's derived
// metadata, dispatch the request, and relay every streamed fact to the
// scheduler until EndOfDefs.
func (p *Pool) analyzeOne(stdin io.Writer, stdout io.Reader, ci fact.CommandInfo) error {
	if err := <-p.sched.ResetMetadata(ci.SourceFile); err != nil {
		return fmt.Errorf("reset metadata: %w", err)
	}
	if err := <-p.sched.UpdateSourceFile(ci); err != nil {
		return fmt.Errorf("update source file: %w", err)
	}
	if err := wireproto.WriteAnalyzeRequest(stdin, ci); err != nil {
		return fmt.Errorf("write analyze request: %w", err)
	}

	for {
		resp, err := wireproto.ReadResponse(stdout)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		switch resp.Kind {
		case wireproto.ResponseEndOfDefs:
			return nil
		case wireproto.ResponseInclusion:
			if err := <-p.sched.UpdateInclusion(resp.Inclusion); err != nil {
				return fmt.Errorf("relay inclusion: %w", err)
			}
		case wireproto.ResponseDefinition:
			if err := <-p.sched.UpdateDefinition(resp.Definition); err != nil {
				return fmt.Errorf("relay definition: %w", err)
			}
		case wireproto.ResponseOverride:
			if err := <-p.sched.UpdateOverride(resp.Override); err != nil {
				return fmt.Errorf("relay override: %w", err)
			}
		case wireproto.ResponseCallEdge:
			if err := <-p.sched.UpdateCaller(resp.CallEdge); err != nil {
				return fmt.Errorf("relay call edge: %w", err)
			}
		case wireproto.ResponseReference:
			if err := <-p.sched.UpdateReference(resp.Reference); err != nil {
				return fmt.Errorf("relay reference: %w", err)
			}
		}
	}
}
