// Package scheduler arbitrates access to the store between the indexing
// pipeline's write traffic and interactive clients' read traffic. A
// single writer goroutine owns the store handle; every other goroutine
// communicates with it exclusively through the two unbounded queues
// this package exposes.
package scheduler

import (
	"log/slog"
	"sync/atomic"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/store"
)

// task is one unit of work handed to the writer goroutine. isShutdown
// tasks carry no fn and stop the loop once dequeued.
type task struct {
	fn         func(store.Operations)
	isShutdown bool
	isWrite    bool
}

// Scheduler owns the store and the two request queues. Both queues are
// genuinely unbounded: send never blocks its caller regardless of
// backlog, and the writer goroutine started by Run is the sole
// consumer of both.
type Scheduler struct {
	store      store.Operations
	updates    *unboundedQueue
	queries    *unboundedQueue
	log        *slog.Logger
	done       chan struct{}
	generation uint64
}

// Config configures New.
type Config struct {
	Store  store.Operations
	Logger *slog.Logger
}

// New creates a scheduler bound to store. Run must be called (typically
// from its own goroutine) to start servicing requests.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   cfg.Store,
		updates: newUnboundedQueue(),
		queries: newUnboundedQueue(),
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Run is the writer thread's main loop. It returns once Shutdown has
// been processed. Every iteration prefers the update channel, except
// every tenth iteration, which prefers the query channel -- an
// approximately 9:1 update-biased schedule that still guarantees a
// query is drained at least once every ten operations.
func (s *Scheduler) Run() {
	var iteration, handled uint64
	for {
		iteration++

		var t task
		var queueLen int
		if iteration%10 == 0 {
			t, queueLen = selectPreferred(s.queries, s.updates)
		} else {
			t, queueLen = selectPreferred(s.updates, s.queries)
		}

		if t.isShutdown {
			close(s.done)
			return
		}

		// Bump the generation before running a write, so a caller that
		// has received the write's reply never reads the old count.
		if t.isWrite {
			atomic.AddUint64(&s.generation, 1)
		}
		t.fn(s.store)
		handled++
		if handled%1000 == 0 {
			s.log.Info("scheduler throughput", "handled", handled, "queue_depth", queueLen)
		}
	}
}

// selectPreferred pops from preferred if it already has an item;
// otherwise it blocks until either queue has one, still favoring
// preferred if both do by the time it wakes. The returned int is the
// post-receive length of whichever queue actually yielded the task,
// for diagnostics.
func selectPreferred(preferred, other *unboundedQueue) (task, int) {
	if t, ok := preferred.tryRecv(); ok {
		return t, preferred.len()
	}
	if t, ok := other.tryRecv(); ok {
		return t, other.len()
	}
	select {
	case <-preferred.ready:
	case <-other.ready:
	}
	if t, ok := preferred.tryRecv(); ok {
		return t, preferred.len()
	}
	if t, ok := other.tryRecv(); ok {
		return t, other.len()
	}
	// Whichever queue signaled was drained by a concurrent call before
	// this one woke; retry rather than block forever on a stale wakeup.
	return selectPreferred(preferred, other)
}

// Shutdown enqueues the stop signal on the update channel and blocks
// until the writer has processed every update queued ahead of it and
// exited. The writer does not drain any further messages once it sees
// Shutdown; queries still waiting on the query channel at that point
// are not run.
func (s *Scheduler) Shutdown() {
	s.updates.send(task{isShutdown: true})
	<-s.done
}

func (s *Scheduler) submitUpdate(fn func(store.Operations)) {
	s.updates.send(task{fn: fn, isWrite: true})
}

func (s *Scheduler) submitQuery(fn func(store.Operations)) {
	s.queries.send(task{fn: fn})
}

// Generation returns a counter incremented once per write, just before
// the writer goroutine runs it.
// The query cache (internal/query) stamps entries with this value and
// discards anything older than the current count, giving cheap
// generation-based invalidation without tracking which tables a write
// actually touched.
func (s *Scheduler) Generation() uint64 {
	return atomic.LoadUint64(&s.generation)
}

// --- update-channel requests ---

func (s *Scheduler) UpdateSourceFile(ci fact.CommandInfo) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateSourceFile(ci) })
	return reply
}

func (s *Scheduler) UpdateDefinition(def fact.DefInfo) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateDefinition(def) })
	return reply
}

func (s *Scheduler) UpdateOverride(o fact.Override) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateOverride(o) })
	return reply
}

func (s *Scheduler) UpdateCaller(c fact.CallEdge) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateCaller(c) })
	return reply
}

func (s *Scheduler) UpdateReference(ref fact.Reference) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateReference(ref) })
	return reply
}

func (s *Scheduler) UpdateInclusion(inc fact.Inclusion) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.UpdateInclusion(inc) })
	return reply
}

func (s *Scheduler) ResetMetadata(sourceFile string) <-chan error {
	reply := make(chan error, 1)
	s.submitUpdate(func(st store.Operations) { reply <- st.ResetMetadata(sourceFile) })
	return reply
}

// InsertResult is the reply to InsertFileAndCheck.
type InsertResult struct {
	IsNew bool
	Err   error
}

// InsertFileAndCheck rides the update channel (not queries) because it
// mutates the Files dictionary; its reply reports whether this call was
// the first to see path, letting a caller dedupe worker dispatch.
func (s *Scheduler) InsertFileAndCheck(path string) <-chan InsertResult {
	reply := make(chan InsertResult, 1)
	s.submitUpdate(func(st store.Operations) {
		isNew, err := st.InsertFileAndCheck(path)
		reply <- InsertResult{IsNew: isNew, Err: err}
	})
	return reply
}
