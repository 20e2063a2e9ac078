package cindex

import "testing"

func defByName(res Result, name string) (int, bool) {
	for i, d := range res.Defs {
		if d.Name == name {
			return i, true
		}
	}
	return 0, false
}

func TestAnalyzeFindsGlobalVarAndFunction(t *testing.T) {
	src := `int var = 0; int main() { return var; }`
	res := Analyze("f.cpp", []byte(src))

	vi, ok := defByName(res, "var")
	if !ok {
		t.Fatalf("expected a def named var, got %+v", res.Defs)
	}
	if res.Defs[vi].Kind != "VarDecl" {
		t.Fatalf("got kind %q, want VarDecl", res.Defs[vi].Kind)
	}

	mi, ok := defByName(res, "main")
	if !ok || res.Defs[mi].Kind != "FunctionDecl" {
		t.Fatalf("expected FunctionDecl main, got %+v", res.Defs)
	}

	if len(res.Refs) != 1 {
		t.Fatalf("expected 1 reference, got %d: %+v", len(res.Refs), res.Refs)
	}
	if res.Refs[0].TargetUSR != res.Defs[vi].USR {
		t.Fatalf("reference targets %q, want %q", res.Refs[0].TargetUSR, res.Defs[vi].USR)
	}
}

func TestAnalyzeRecordsIncludes(t *testing.T) {
	src := "#include <stdio.h>\n#include \"local.h\"\nint main() { return 0; }"
	res := Analyze("f.cpp", []byte(src))

	if len(res.Inclusions) != 2 {
		t.Fatalf("expected 2 inclusions, got %+v", res.Inclusions)
	}
	if res.Inclusions[0].Included != "stdio.h" || res.Inclusions[1].Included != "local.h" {
		t.Fatalf("unexpected inclusions: %+v", res.Inclusions)
	}
}

func TestAnalyzeTracksCallEdges(t *testing.T) {
	src := `int helper() { return 1; } int main() { return helper(); }`
	res := Analyze("f.cpp", []byte(src))

	hi, ok := defByName(res, "helper")
	if !ok {
		t.Fatalf("expected helper def, got %+v", res.Defs)
	}
	mi, ok := defByName(res, "main")
	if !ok {
		t.Fatalf("expected main def, got %+v", res.Defs)
	}

	if len(res.Calls) != 1 {
		t.Fatalf("expected 1 call edge, got %+v", res.Calls)
	}
	if res.Calls[0].CallerUSR != res.Defs[mi].USR || res.Calls[0].CalleeUSR != res.Defs[hi].USR {
		t.Fatalf("unexpected call edge %+v", res.Calls[0])
	}
}

func TestAnalyzeClassInheritanceProducesOverride(t *testing.T) {
	src := `class Base { virtual void run() { } };
class Derived : public Base { void run() override { } };`
	res := Analyze("f.cpp", []byte(src))

	bi, ok := defByName(res, "Base")
	if !ok {
		t.Fatalf("expected Base class def")
	}
	di, ok := defByName(res, "Derived")
	if !ok {
		t.Fatalf("expected Derived class def")
	}

	foundClassEdge := false
	for _, ov := range res.Overrides {
		if ov.DefiningUSR == res.Defs[di].USR && ov.OverriddenUSR == res.Defs[bi].USR {
			foundClassEdge = true
		}
	}
	if !foundClassEdge {
		t.Fatalf("expected class inheritance override edge, got %+v", res.Overrides)
	}

	foundMethodEdge := false
	for _, ov := range res.Overrides {
		if ov.DefiningUSR != res.Defs[di].USR && ov.DefiningUSR != res.Defs[bi].USR {
			foundMethodEdge = true
		}
	}
	if !foundMethodEdge {
		t.Fatalf("expected method override edge distinct from class edge, got %+v", res.Overrides)
	}
}

func TestAnalyzeEnumConstants(t *testing.T) {
	src := `enum Color { Red, Green, Blue };`
	res := Analyze("f.cpp", []byte(src))

	for _, name := range []string{"Red", "Green", "Blue"} {
		if _, ok := defByName(res, name); !ok {
			t.Errorf("expected enum constant %s, got %+v", name, res.Defs)
		}
	}
}
