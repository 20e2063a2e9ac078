package scheduler

import (
	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/store"
)

// CommandInfoResult is the reply shape shared by every query that
// resolves to a single, possibly-absent CommandInfo.
type CommandInfoResult struct {
	Info *fact.CommandInfo
	Err  error
}

func (s *Scheduler) GetCommandInfo(sourceFile string) <-chan CommandInfoResult {
	reply := make(chan CommandInfoResult, 1)
	s.submitQuery(func(st store.Operations) {
		info, err := st.GetCommandInfo(sourceFile)
		reply <- CommandInfoResult{Info: info, Err: err}
	})
	return reply
}

func (s *Scheduler) GetSimilarCommandInfo(sourceFile string) <-chan CommandInfoResult {
	reply := make(chan CommandInfoResult, 1)
	s.submitQuery(func(st store.Operations) {
		info, err := st.GetSimilarCommandInfo(sourceFile)
		reply <- CommandInfoResult{Info: info, Err: err}
	})
	return reply
}

// DefinitionResult is the reply for a lookup of a single, possibly-absent
// definition.
type DefinitionResult struct {
	Def *fact.DefInfo
	Err error
}

func (s *Scheduler) GetDefinition(usr string) <-chan DefinitionResult {
	reply := make(chan DefinitionResult, 1)
	s.submitQuery(func(st store.Operations) {
		def, err := st.GetDefinition(usr)
		reply <- DefinitionResult{Def: def, Err: err}
	})
	return reply
}

// CommandInfoListResult is the reply for queries returning many
// CommandInfo records.
type CommandInfoListResult struct {
	Infos []fact.CommandInfo
	Err   error
}

func (s *Scheduler) GetIncluders(sourceFile string) <-chan CommandInfoListResult {
	reply := make(chan CommandInfoListResult, 1)
	s.submitQuery(func(st store.Operations) {
		infos, err := st.GetIncluders(sourceFile)
		reply <- CommandInfoListResult{Infos: infos, Err: err}
	})
	return reply
}

func (s *Scheduler) ListSourceFiles() <-chan CommandInfoListResult {
	reply := make(chan CommandInfoListResult, 1)
	s.submitQuery(func(st store.Operations) {
		infos, err := st.ListSourceFiles()
		reply <- CommandInfoListResult{Infos: infos, Err: err}
	})
	return reply
}

// DefListResult is the reply for the graph-edge queries that return a
// list of definitions.
type DefListResult struct {
	Defs []fact.DefInfo
	Err  error
}

func (s *Scheduler) GetCallers(usr string) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetCallers(usr) })
}

func (s *Scheduler) GetCallees(usr string) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetCallees(usr) })
}

func (s *Scheduler) GetBases(usr string) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetBases(usr) })
}

func (s *Scheduler) GetOverriders(usr string) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetOverriders(usr) })
}

func (s *Scheduler) GetReferenced(loc fact.Location) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetReferenced(loc) })
}

func (s *Scheduler) GetDefinitionsInFile(file string) <-chan DefListResult {
	return s.submitDefListQuery(func(st store.Operations) ([]fact.DefInfo, error) { return st.GetDefinitionsInFile(file) })
}

func (s *Scheduler) submitDefListQuery(fn func(store.Operations) ([]fact.DefInfo, error)) <-chan DefListResult {
	reply := make(chan DefListResult, 1)
	s.submitQuery(func(st store.Operations) {
		defs, err := fn(st)
		reply <- DefListResult{Defs: defs, Err: err}
	})
	return reply
}

// RangeListResult is the reply for GetReferences.
type RangeListResult struct {
	Ranges []fact.SourceRange
	Err    error
}

func (s *Scheduler) GetReferences(usr string) <-chan RangeListResult {
	reply := make(chan RangeListResult, 1)
	s.submitQuery(func(st store.Operations) {
		ranges, err := st.GetReferences(usr)
		reply <- RangeListResult{Ranges: ranges, Err: err}
	})
	return reply
}
