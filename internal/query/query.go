// Package query is the thin client-facing surface translating a
// caller's intent into one or more scheduler requests. Its only
// non-trivial operation is CompileFlagsForFile's three-step fallback
// chain; every other method is a direct pass-through, and all of them
// except References are wrapped in a generation-stamped cache to spare
// the writer thread repeat reads for hot symbols.
package query

import (
	"fmt"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/scheduler"
)

// Surface is the query-side client of a Scheduler.
type Surface struct {
	sched *scheduler.Scheduler
	cache *cache
}

// Config configures New.
type Config struct {
	Scheduler *scheduler.Scheduler
	// CacheSize is the number of cached entries per query kind. Zero
	// selects a sensible default.
	CacheSize int
}

// New creates a query Surface over sched.
func New(cfg Config) *Surface {
	size := cfg.CacheSize
	if size <= 0 {
		size = 2048
	}
	return &Surface{sched: cfg.Scheduler, cache: newCache(size)}
}

// Definition returns the definition site of usr, or nil if unknown.
func (s *Surface) Definition(usr string) (*fact.DefInfo, error) {
	gen := s.sched.Generation()
	if v, ok := s.cache.getDef(usr, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetDefinition(usr)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDef(usr, res.Def, gen)
	return res.Def, nil
}

// Callers returns every known caller of usr.
func (s *Surface) Callers(usr string) ([]fact.DefInfo, error) {
	gen := s.sched.Generation()
	if v, ok := s.cache.getDefList("callers", usr, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetCallers(usr)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDefList("callers", usr, res.Defs, gen)
	return res.Defs, nil
}

// Callees returns every symbol usr calls.
func (s *Surface) Callees(usr string) ([]fact.DefInfo, error) {
	gen := s.sched.Generation()
	if v, ok := s.cache.getDefList("callees", usr, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetCallees(usr)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDefList("callees", usr, res.Defs, gen)
	return res.Defs, nil
}

// Bases returns the symbols usr overrides.
func (s *Surface) Bases(usr string) ([]fact.DefInfo, error) {
	gen := s.sched.Generation()
	if v, ok := s.cache.getDefList("bases", usr, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetBases(usr)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDefList("bases", usr, res.Defs, gen)
	return res.Defs, nil
}

// Overriders returns the symbols that override usr.
func (s *Surface) Overriders(usr string) ([]fact.DefInfo, error) {
	gen := s.sched.Generation()
	if v, ok := s.cache.getDefList("overriders", usr, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetOverriders(usr)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDefList("overriders", usr, res.Defs, gen)
	return res.Defs, nil
}

// References returns every source range referencing usr.
func (s *Surface) References(usr string) ([]fact.SourceRange, error) {
	res := <-s.sched.GetReferences(usr)
	return res.Ranges, res.Err
}

// Referenced performs parse-free symbol lookup at a cursor: every
// definition whose Refs row covers loc.
func (s *Surface) Referenced(loc fact.Location) ([]fact.DefInfo, error) {
	key := fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	gen := s.sched.Generation()
	if v, ok := s.cache.getDefList("referenced", key, gen); ok {
		return v, nil
	}
	res := <-s.sched.GetReferenced(loc)
	if res.Err != nil {
		return nil, res.Err
	}
	s.cache.putDefList("referenced", key, res.Defs, gen)
	return res.Defs, nil
}

// CompileFlagsForFile resolves the command line to use for sourceFile,
// trying an exact match first, then the command of any translation unit
// that includes it (useful for headers), then a directory-prefix guess.
// Returns nil if every step misses.
func (s *Surface) CompileFlagsForFile(sourceFile string) (*fact.CommandInfo, error) {
	exact := <-s.sched.GetCommandInfo(sourceFile)
	if exact.Err != nil {
		return nil, exact.Err
	}
	if exact.Info != nil {
		return exact.Info, nil
	}

	includers := <-s.sched.GetIncluders(sourceFile)
	if includers.Err != nil {
		return nil, includers.Err
	}
	if len(includers.Infos) > 0 {
		ci := includers.Infos[0]
		ci.SourceFile = sourceFile
		return &ci, nil
	}

	similar := <-s.sched.GetSimilarCommandInfo(sourceFile)
	if similar.Err != nil {
		return nil, similar.Err
	}
	return similar.Info, nil
}
