package store

import (
	"reflect"
	"sort"
	"testing"

	"github.com/sfowler/pygmalion/internal/fact"
)

func TestUpdateAndGetCommandInfo(t *testing.T) {
	s := openTestStore(t)

	ci := fact.CommandInfo{
		SourceFile:  "/proj/src/main.cpp",
		WorkingDir:  "/proj",
		Command:     "clang++",
		Args:        []string{"-std=c++20", "-Iinclude", "-c"},
		LastIndexed: 1732000000,
	}
	if err := s.UpdateSourceFile(ci); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetCommandInfo(ci.SourceFile)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected command info, got nil")
	}
	if !reflect.DeepEqual(*got, ci) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *got, ci)
	}
}

func TestGetCommandInfoMissReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetCommandInfo("/nope.cpp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestGetSimilarCommandInfoMatchesDirectory(t *testing.T) {
	s := openTestStore(t)
	ci := fact.CommandInfo{
		SourceFile: "/proj/src/main.cpp",
		WorkingDir: "/proj",
		Command:    "clang++",
	}
	if err := s.UpdateSourceFile(ci); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetSimilarCommandInfo("/proj/src/header.h")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a similar command info")
	}
	if got.SourceFile != "/proj/src/header.h" {
		t.Fatalf("expected SourceFile rewritten to queried path, got %q", got.SourceFile)
	}
	if got.Command != ci.Command {
		t.Fatalf("expected command %q, got %q", ci.Command, got.Command)
	}
}

func TestGetSimilarCommandInfoDoesNotWildcardMatchUnderscore(t *testing.T) {
	s := openTestStore(t)
	ci := fact.CommandInfo{
		SourceFile: "/proj/myXlib/src/main.cpp",
		WorkingDir: "/proj",
		Command:    "clang++",
	}
	if err := s.UpdateSourceFile(ci); err != nil {
		t.Fatalf("update: %v", err)
	}

	// "my_lib" must not LIKE-match the unrelated "myXlib" directory:
	// '_' is a single-character SQLite LIKE wildcard unless escaped.
	got, err := s.GetSimilarCommandInfo("/proj/my_lib/src/header.h")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match across differing directories, got %+v", got)
	}
}

func TestGetSimilarCommandInfoMatchesUnderscoreDirectoryLiterally(t *testing.T) {
	s := openTestStore(t)
	ci := fact.CommandInfo{
		SourceFile: "/proj/my_lib/src/main.cpp",
		WorkingDir: "/proj",
		Command:    "clang++",
	}
	if err := s.UpdateSourceFile(ci); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetSimilarCommandInfo("/proj/my_lib/src/header.h")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a match within the same literal directory")
	}
}

func TestGetSimilarCommandInfoMissReturnsNilNoError(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetSimilarCommandInfo("/nowhere/x.h")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil miss, got %+v", got)
	}
}

func TestDefinitionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	d := fact.DefInfo{
		USR:      "c:@F@main#",
		Name:     "main",
		Location: fact.Location{File: "f.cpp", Line: 1, Col: 5},
		Kind:     "FunctionDecl",
	}
	if err := s.UpdateDefinition(d); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetDefinition(d.USR)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || *got != d {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
}

// TestCallersCalleesSymmetric verifies invariant 3: after updateCaller(a,b)
// once or many times, b is in getCallees(a) and a is in getCallers(b),
// both duplicate-free.
func TestCallersCalleesSymmetric(t *testing.T) {
	s := openTestStore(t)
	a := fact.DefInfo{USR: "usr_a", Name: "a", Location: fact.Location{File: "f.cpp", Line: 1}, Kind: "FunctionDecl"}
	b := fact.DefInfo{USR: "usr_b", Name: "b", Location: fact.Location{File: "f.cpp", Line: 2}, Kind: "FunctionDecl"}
	for _, d := range []fact.DefInfo{a, b} {
		if err := s.UpdateDefinition(d); err != nil {
			t.Fatalf("update def: %v", err)
		}
	}

	edge := fact.CallEdge{CallerUSR: a.USR, CalleeUSR: b.USR}
	for i := 0; i < 3; i++ {
		if err := s.UpdateCaller(edge); err != nil {
			t.Fatalf("update caller: %v", err)
		}
	}

	callees, err := s.GetCallees(a.USR)
	if err != nil {
		t.Fatalf("callees: %v", err)
	}
	if len(callees) != 1 || callees[0].USR != b.USR {
		t.Fatalf("expected exactly [b], got %+v", callees)
	}

	callers, err := s.GetCallers(b.USR)
	if err != nil {
		t.Fatalf("callers: %v", err)
	}
	if len(callers) != 1 || callers[0].USR != a.USR {
		t.Fatalf("expected exactly [a], got %+v", callers)
	}
}

func TestCallEdgeToUndefinedUSRIsSkipped(t *testing.T) {
	s := openTestStore(t)
	a := fact.DefInfo{USR: "usr_a", Name: "a", Location: fact.Location{File: "f.cpp", Line: 1}, Kind: "FunctionDecl"}
	if err := s.UpdateDefinition(a); err != nil {
		t.Fatalf("update def: %v", err)
	}
	if err := s.UpdateCaller(fact.CallEdge{CallerUSR: a.USR, CalleeUSR: "usr_never_defined"}); err != nil {
		t.Fatalf("update caller: %v", err)
	}
	callees, err := s.GetCallees(a.USR)
	if err != nil {
		t.Fatalf("callees: %v", err)
	}
	if len(callees) != 0 {
		t.Fatalf("expected dangling endpoint dropped, got %+v", callees)
	}
}

func TestOverridesBasesSymmetric(t *testing.T) {
	s := openTestStore(t)
	child := fact.DefInfo{USR: "usr_child", Name: "child", Location: fact.Location{File: "f.cpp", Line: 1}, Kind: "CXXMethod"}
	parent := fact.DefInfo{USR: "usr_parent", Name: "parent", Location: fact.Location{File: "f.cpp", Line: 2}, Kind: "CXXMethod"}
	for _, d := range []fact.DefInfo{child, parent} {
		if err := s.UpdateDefinition(d); err != nil {
			t.Fatalf("update def: %v", err)
		}
	}
	if err := s.UpdateOverride(fact.Override{DefiningUSR: child.USR, OverriddenUSR: parent.USR}); err != nil {
		t.Fatalf("update override: %v", err)
	}

	bases, err := s.GetBases(child.USR)
	if err != nil {
		t.Fatalf("bases: %v", err)
	}
	if len(bases) != 1 || bases[0].USR != parent.USR {
		t.Fatalf("expected [parent], got %+v", bases)
	}

	overriders, err := s.GetOverriders(parent.USR)
	if err != nil {
		t.Fatalf("overriders: %v", err)
	}
	if len(overriders) != 1 || overriders[0].USR != child.USR {
		t.Fatalf("expected [child], got %+v", overriders)
	}
}

// TestGetReferencedBoundaries exercises invariant 5 including the
// degenerate single-line range case.
func TestGetReferencedBoundaries(t *testing.T) {
	s := openTestStore(t)
	def := fact.DefInfo{USR: "usr_var", Name: "var", Location: fact.Location{File: "f.cpp", Line: 1, Col: 5}, Kind: "VarDecl"}
	if err := s.UpdateDefinition(def); err != nil {
		t.Fatalf("update def: %v", err)
	}
	// Single-line reference spanning columns 18-21 on line 1.
	ref := fact.Reference{
		Range:     fact.SourceRange{File: "f.cpp", Line: 1, Col: 18, EndLine: 1, EndCol: 21},
		TargetUSR: def.USR,
	}
	if err := s.UpdateReference(ref); err != nil {
		t.Fatalf("update ref: %v", err)
	}

	cases := []struct {
		name string
		loc  fact.Location
		want bool
	}{
		{"start boundary inclusive", fact.Location{File: "f.cpp", Line: 1, Col: 18}, true},
		{"end boundary inclusive", fact.Location{File: "f.cpp", Line: 1, Col: 21}, true},
		{"interior", fact.Location{File: "f.cpp", Line: 1, Col: 19}, true},
		{"before start excluded", fact.Location{File: "f.cpp", Line: 1, Col: 17}, false},
		{"after end excluded", fact.Location{File: "f.cpp", Line: 1, Col: 22}, false},
		{"wrong line excluded", fact.Location{File: "f.cpp", Line: 2, Col: 19}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defs, err := s.GetReferenced(c.loc)
			if err != nil {
				t.Fatalf("getReferenced: %v", err)
			}
			got := len(defs) == 1
			if got != c.want {
				t.Fatalf("loc %+v: got match=%v, want %v (defs=%+v)", c.loc, got, c.want, defs)
			}
		})
	}
}

func TestGetReferencedMultiLineRange(t *testing.T) {
	s := openTestStore(t)
	def := fact.DefInfo{USR: "usr_fn", Name: "fn", Location: fact.Location{File: "f.cpp", Line: 10, Col: 1}, Kind: "FunctionDecl"}
	if err := s.UpdateDefinition(def); err != nil {
		t.Fatalf("update def: %v", err)
	}
	ref := fact.Reference{
		Range:     fact.SourceRange{File: "f.cpp", Line: 1, Col: 10, EndLine: 5, EndCol: 3},
		TargetUSR: def.USR,
	}
	if err := s.UpdateReference(ref); err != nil {
		t.Fatalf("update ref: %v", err)
	}

	cases := []struct {
		name string
		loc  fact.Location
		want bool
	}{
		{"on start line at boundary col", fact.Location{File: "f.cpp", Line: 1, Col: 10}, true},
		{"on start line before boundary col", fact.Location{File: "f.cpp", Line: 1, Col: 1}, false},
		{"interior line any col", fact.Location{File: "f.cpp", Line: 3, Col: 1}, true},
		{"on end line at boundary col", fact.Location{File: "f.cpp", Line: 5, Col: 3}, true},
		{"on end line past boundary col", fact.Location{File: "f.cpp", Line: 5, Col: 4}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defs, err := s.GetReferenced(c.loc)
			if err != nil {
				t.Fatalf("getReferenced: %v", err)
			}
			got := len(defs) == 1
			if got != c.want {
				t.Fatalf("loc %+v: got match=%v, want %v", c.loc, got, c.want)
			}
		})
	}
}

func TestInsertFileAndCheck(t *testing.T) {
	s := openTestStore(t)
	isNew, err := s.InsertFileAndCheck("f.cpp")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !isNew {
		t.Fatalf("expected first insertion to report new")
	}
	isNew, err = s.InsertFileAndCheck("f.cpp")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if isNew {
		t.Fatalf("expected second insertion to report not-new")
	}
}

// TestResetMetadataIdempotence verifies invariant 1: replaying
// resetMetadata followed by the full fact set for a file yields the same
// query results as a store that saw them only once.
func TestResetMetadataIdempotence(t *testing.T) {
	replay := func(s *Store) fact.DefInfo {
		def := fact.DefInfo{USR: "usr_x", Name: "x", Location: fact.Location{File: "f.cpp", Line: 3, Col: 1}, Kind: "VarDecl"}
		if err := s.ResetMetadata("f.cpp"); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := s.UpdateDefinition(def); err != nil {
			t.Fatalf("update def: %v", err)
		}
		if err := s.UpdateInclusion(fact.Inclusion{Includer: "f.cpp", Included: "g.h", Direct: true}); err != nil {
			t.Fatalf("update inclusion: %v", err)
		}
		return def
	}

	fresh := openTestStore(t)
	def := replay(fresh)

	reindexed := openTestStore(t)
	replay(reindexed)
	replay(reindexed)

	for _, s := range []*Store{fresh, reindexed} {
		got, err := s.GetDefinition(def.USR)
		if err != nil {
			t.Fatalf("get definition: %v", err)
		}
		if got == nil || *got != def {
			t.Fatalf("expected definition %+v, got %+v", def, got)
		}
		includes, err := s.GetDirectIncludes("f.cpp")
		if err != nil {
			t.Fatalf("get direct includes: %v", err)
		}
		if len(includes) != 1 || includes[0] != "g.h" {
			t.Fatalf("expected exactly [g.h], got %+v", includes)
		}
	}
}

func TestGetIncludersTransitive(t *testing.T) {
	s := openTestStore(t)
	tu := fact.CommandInfo{SourceFile: "a.cpp", WorkingDir: "/proj", Command: "clang++"}
	if err := s.UpdateSourceFile(tu); err != nil {
		t.Fatalf("update source file: %v", err)
	}
	// a.cpp includes b.h, which includes c.h.
	if err := s.UpdateInclusion(fact.Inclusion{Includer: "a.cpp", Included: "b.h", Direct: true}); err != nil {
		t.Fatalf("inclusion: %v", err)
	}
	if err := s.UpdateInclusion(fact.Inclusion{Includer: "b.h", Included: "c.h", Direct: true}); err != nil {
		t.Fatalf("inclusion: %v", err)
	}

	includers, err := s.GetIncluders("c.h")
	if err != nil {
		t.Fatalf("get includers: %v", err)
	}
	var files []string
	for _, ci := range includers {
		files = append(files, ci.SourceFile)
	}
	sort.Strings(files)
	if len(files) != 1 || files[0] != "a.cpp" {
		t.Fatalf("expected [a.cpp] as transitive includer, got %+v", files)
	}
}

func TestListSourceFiles(t *testing.T) {
	s := openTestStore(t)
	for _, sf := range []string{"a.cpp", "b.cpp", "c.cpp"} {
		ci := fact.CommandInfo{SourceFile: sf, WorkingDir: "/proj", Command: "clang++", Args: []string{"-c"}}
		if err := s.UpdateSourceFile(ci); err != nil {
			t.Fatalf("update %s: %v", sf, err)
		}
	}

	all, err := s.ListSourceFiles()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var files []string
	for _, ci := range all {
		files = append(files, ci.SourceFile)
	}
	sort.Strings(files)
	if len(files) != 3 || files[0] != "a.cpp" || files[1] != "b.cpp" || files[2] != "c.cpp" {
		t.Fatalf("expected [a.cpp b.cpp c.cpp], got %+v", files)
	}
}
