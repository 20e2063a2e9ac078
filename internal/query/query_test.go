package query

import (
	"testing"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/scheduler"
	"github.com/sfowler/pygmalion/internal/store"
)

// fakeStore lets CompileFlagsForFile's fallback chain be tested without
// SQLite: each field controls one step's canned response.
type fakeStore struct {
	commandInfo        *fact.CommandInfo
	includers          []fact.CommandInfo
	similarCommandInfo *fact.CommandInfo
	definitionCalls    int
	definition         *fact.DefInfo
	referencedCalls    int
	referenced         []fact.DefInfo
}

func (f *fakeStore) Close() error { return nil }
func (f *fakeStore) Path() string { return "" }
func (f *fakeStore) UpdateSourceFile(fact.CommandInfo) error { return nil }
func (f *fakeStore) GetCommandInfo(string) (*fact.CommandInfo, error) { return f.commandInfo, nil }
func (f *fakeStore) GetSimilarCommandInfo(string) (*fact.CommandInfo, error) {
	return f.similarCommandInfo, nil
}
func (f *fakeStore) GetIncluders(string) ([]fact.CommandInfo, error) { return f.includers, nil }
func (f *fakeStore) ListSourceFiles() ([]fact.CommandInfo, error)    { return nil, nil }
func (f *fakeStore) UpdateInclusion(fact.Inclusion) error            { return nil }
func (f *fakeStore) GetDirectIncludes(string) ([]string, error)      { return nil, nil }
func (f *fakeStore) UpdateDefinition(fact.DefInfo) error             { return nil }
func (f *fakeStore) GetDefinition(string) (*fact.DefInfo, error) {
	f.definitionCalls++
	return f.definition, nil
}
func (f *fakeStore) GetDefinitionsInFile(string) ([]fact.DefInfo, error) { return nil, nil }
func (f *fakeStore) UpdateOverride(fact.Override) error                 { return nil }
func (f *fakeStore) UpdateCaller(fact.CallEdge) error                   { return nil }
func (f *fakeStore) GetCallers(string) ([]fact.DefInfo, error)          { return nil, nil }
func (f *fakeStore) GetCallees(string) ([]fact.DefInfo, error)          { return nil, nil }
func (f *fakeStore) GetBases(string) ([]fact.DefInfo, error)            { return nil, nil }
func (f *fakeStore) GetOverriders(string) ([]fact.DefInfo, error)       { return nil, nil }
func (f *fakeStore) UpdateReference(fact.Reference) error               { return nil }
func (f *fakeStore) GetReferences(string) ([]fact.SourceRange, error)   { return nil, nil }
func (f *fakeStore) GetReferenced(fact.Location) ([]fact.DefInfo, error) {
	f.referencedCalls++
	return f.referenced, nil
}
func (f *fakeStore) InsertFileAndCheck(string) (bool, error)            { return true, nil }
func (f *fakeStore) ResetMetadata(string) error                         { return nil }

var _ store.Operations = (*fakeStore)(nil)

func newTestSurface(t *testing.T, fs *fakeStore) *Surface {
	t.Helper()
	sched := scheduler.New(scheduler.Config{Store: fs})
	go sched.Run()
	t.Cleanup(sched.Shutdown)
	return New(Config{Scheduler: sched})
}

func TestCompileFlagsForFileExactMatch(t *testing.T) {
	fs := &fakeStore{commandInfo: &fact.CommandInfo{SourceFile: "f.cpp", Command: "clang++"}}
	s := newTestSurface(t, fs)

	got, err := s.CompileFlagsForFile("f.cpp")
	if err != nil {
		t.Fatalf("compile flags: %v", err)
	}
	if got == nil || got.Command != "clang++" {
		t.Fatalf("expected exact match, got %+v", got)
	}
}

func TestCompileFlagsForFileFallsBackToIncluder(t *testing.T) {
	fs := &fakeStore{
		includers: []fact.CommandInfo{{SourceFile: "a.cpp", Command: "gcc"}},
	}
	s := newTestSurface(t, fs)

	got, err := s.CompileFlagsForFile("header.h")
	if err != nil {
		t.Fatalf("compile flags: %v", err)
	}
	if got == nil || got.Command != "gcc" || got.SourceFile != "header.h" {
		t.Fatalf("expected includer's command rewritten to header.h, got %+v", got)
	}
}

func TestCompileFlagsForFileFallsBackToSimilar(t *testing.T) {
	fs := &fakeStore{
		similarCommandInfo: &fact.CommandInfo{SourceFile: "header.h", Command: "clang"},
	}
	s := newTestSurface(t, fs)

	got, err := s.CompileFlagsForFile("header.h")
	if err != nil {
		t.Fatalf("compile flags: %v", err)
	}
	if got == nil || got.Command != "clang" {
		t.Fatalf("expected similar-command fallback, got %+v", got)
	}
}

func TestCompileFlagsForFileAllMissesReturnsNil(t *testing.T) {
	s := newTestSurface(t, &fakeStore{})
	got, err := s.CompileFlagsForFile("nope.cpp")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestDefinitionCacheHitAvoidsSecondQuery(t *testing.T) {
	def := fact.DefInfo{USR: "u", Name: "n", Kind: "VarDecl"}
	fs := &fakeStore{definition: &def}
	s := newTestSurface(t, fs)

	first, err := s.Definition("u")
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	second, err := s.Definition("u")
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if first == nil || second == nil || *first != *second {
		t.Fatalf("expected consistent cached result, got %+v and %+v", first, second)
	}
	if fs.definitionCalls != 1 {
		t.Fatalf("expected exactly one store query, got %d", fs.definitionCalls)
	}
}

func TestDefinitionCacheInvalidatedByWrite(t *testing.T) {
	def := fact.DefInfo{USR: "u", Name: "n", Kind: "VarDecl"}
	fs := &fakeStore{definition: &def}
	sched := scheduler.New(scheduler.Config{Store: fs})
	go sched.Run()
	defer sched.Shutdown()
	s := New(Config{Scheduler: sched})

	if _, err := s.Definition("u"); err != nil {
		t.Fatalf("definition: %v", err)
	}
	if err := <-sched.UpdateDefinition(def); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Definition("u"); err != nil {
		t.Fatalf("definition: %v", err)
	}
	if fs.definitionCalls != 2 {
		t.Fatalf("expected cache to be invalidated by the intervening write, got %d calls", fs.definitionCalls)
	}
}

func TestReferencedCacheHitAvoidsSecondQuery(t *testing.T) {
	defs := []fact.DefInfo{{USR: "u", Name: "var", Kind: "VarDecl"}}
	fs := &fakeStore{referenced: defs}
	s := newTestSurface(t, fs)

	loc := fact.Location{File: "f.cpp", Line: 1, Col: 18}
	first, err := s.Referenced(loc)
	if err != nil {
		t.Fatalf("referenced: %v", err)
	}
	second, err := s.Referenced(loc)
	if err != nil {
		t.Fatalf("referenced: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("expected consistent cached result, got %+v and %+v", first, second)
	}
	if fs.referencedCalls != 1 {
		t.Fatalf("expected exactly one store query, got %d", fs.referencedCalls)
	}
}

func TestReferencedCacheInvalidatedByWrite(t *testing.T) {
	defs := []fact.DefInfo{{USR: "u", Name: "var", Kind: "VarDecl"}}
	fs := &fakeStore{referenced: defs}
	sched := scheduler.New(scheduler.Config{Store: fs})
	go sched.Run()
	defer sched.Shutdown()
	s := New(Config{Scheduler: sched})

	loc := fact.Location{File: "f.cpp", Line: 1, Col: 18}
	if _, err := s.Referenced(loc); err != nil {
		t.Fatalf("referenced: %v", err)
	}
	if err := <-sched.UpdateReference(fact.Reference{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Referenced(loc); err != nil {
		t.Fatalf("referenced: %v", err)
	}
	if fs.referencedCalls != 2 {
		t.Fatalf("expected cache to be invalidated by the intervening write, got %d calls", fs.referencedCalls)
	}
}
