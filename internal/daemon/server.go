// Package daemon runs the pygd control-channel server: a Unix domain
// socket accepting one request per connection from either pygscan (the
// build observer) or the pygmalion CLI, dispatching it against the
// scheduler and query surface, and closing the connection after a
// single reply. One connection, one request, one response — there is
// no session state to keep across calls.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/query"
	"github.com/sfowler/pygmalion/internal/rpc"
	"github.com/sfowler/pygmalion/internal/scheduler"
	"github.com/sfowler/pygmalion/internal/workerpool"
)

// Server owns the control-channel listener.
type Server struct {
	listener net.Listener
	sched    *scheduler.Scheduler
	query    *query.Surface
	pool     *workerpool.Pool
	log      *slog.Logger
	stopped  chan struct{}
	stopOnce sync.Once
}

// Config configures New.
type Config struct {
	SocketPath string
	Scheduler  *scheduler.Scheduler
	Query      *query.Surface
	Pool       *workerpool.Pool // may be nil if --index is unsupported (e.g. tests)
	Logger     *slog.Logger
}

// New binds the control socket at cfg.SocketPath, removing any stale
// socket file left by a prior unclean shutdown.
func New(cfg Config) (*Server, error) {
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("daemon: remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: listen on %s: %w", cfg.SocketPath, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener: l,
		sched:    cfg.Scheduler,
		query:    cfg.Query,
		pool:     cfg.Pool,
		log:      logger,
		stopped:  make(chan struct{}),
	}, nil
}

// Stopped is closed once a VerbStop request has been handled.
func (s *Server) Stopped() <-chan struct{} { return s.stopped }

// Serve accepts connections until ctx is canceled; a VerbStop request
// closes Stopped but does not by itself end Serve. Each connection is
// handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				return fmt.Errorf("daemon: accept: %w", err)
			}
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := rpc.ReadRequest(conn)
	if err != nil {
		s.log.Warn("daemon: malformed control request", "error", err)
		return
	}

	resp := s.dispatch(req)
	if err := resp(conn); err != nil {
		s.log.Warn("daemon: failed writing control response", "error", err)
	}
}

// dispatch returns a closure that writes the appropriate response for
// req, so error handling for the write itself stays in one place.
func (s *Server) dispatch(req rpc.Request) func(net.Conn) error {
	switch req.Verb {
	case rpc.VerbObserveCommand:
		if err := <-s.sched.UpdateSourceFile(req.CommandInfo); err != nil {
			return errorResponse(err)
		}
		if s.pool != nil {
			s.pool.Submit(req.CommandInfo)
		}
		return func(w net.Conn) error { return rpc.WriteEmptyOK(w) }

	case rpc.VerbIndex:
		if err := <-s.sched.UpdateSourceFile(req.CommandInfo); err != nil {
			return errorResponse(err)
		}
		if s.pool != nil {
			s.pool.Submit(req.CommandInfo)
		}
		return func(w net.Conn) error { return rpc.WriteEmptyOK(w) }

	case rpc.VerbLookupSymbol:
		d, err := s.query.Definition(req.USR)
		if err != nil {
			return errorResponse(err)
		}
		return func(w net.Conn) error { return rpc.WriteDefinitionResponse(w, d) }

	case rpc.VerbCallers:
		return s.defListResponse(func() ([]fact.DefInfo, error) { return s.query.Callers(req.USR) })
	case rpc.VerbCallees:
		return s.defListResponse(func() ([]fact.DefInfo, error) { return s.query.Callees(req.USR) })
	case rpc.VerbBases:
		return s.defListResponse(func() ([]fact.DefInfo, error) { return s.query.Bases(req.USR) })
	case rpc.VerbOverriders:
		return s.defListResponse(func() ([]fact.DefInfo, error) { return s.query.Overriders(req.USR) })
	case rpc.VerbDefinition:
		return s.defListResponse(func() ([]fact.DefInfo, error) { return s.query.Referenced(req.Location) })

	case rpc.VerbReferences:
		ranges, err := s.query.References(req.USR)
		if err != nil {
			return errorResponse(err)
		}
		return func(w net.Conn) error { return rpc.WriteRangeListResponse(w, ranges) }

	case rpc.VerbCompileFlags:
		ci, err := s.query.CompileFlagsForFile(req.SourceFile)
		if err != nil {
			return errorResponse(err)
		}
		return func(w net.Conn) error { return rpc.WriteCommandInfoResponse(w, ci) }

	case rpc.VerbStop:
		s.stopOnce.Do(func() { close(s.stopped) })
		return func(w net.Conn) error { return rpc.WriteEmptyOK(w) }

	default:
		return errorResponse(fmt.Errorf("daemon: unhandled verb %d", req.Verb))
	}
}

func (s *Server) defListResponse(fn func() ([]fact.DefInfo, error)) func(net.Conn) error {
	defs, err := fn()
	if err != nil {
		return errorResponse(err)
	}
	return func(w net.Conn) error { return rpc.WriteDefListResponse(w, defs) }
}

func errorResponse(err error) func(net.Conn) error {
	return func(w net.Conn) error { return rpc.WriteError(w, err.Error()) }
}
