package fact

import (
	"bytes"
	"testing"
)

func TestCommandInfoRoundTrip(t *testing.T) {
	ci := CommandInfo{
		SourceFile:  "src/main.cpp",
		WorkingDir:  "/proj",
		Command:     "clang++",
		Args:        []string{"-std=c++20", "-Iinclude", "-c"},
		LastIndexed: 1732000000,
	}
	var buf bytes.Buffer
	if err := EncodeCommandInfo(&buf, ci); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeCommandInfo(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SourceFile != ci.SourceFile || got.WorkingDir != ci.WorkingDir ||
		got.Command != ci.Command || got.LastIndexed != ci.LastIndexed ||
		len(got.Args) != len(ci.Args) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ci)
	}
	for i := range ci.Args {
		if got.Args[i] != ci.Args[i] {
			t.Fatalf("arg %d mismatch: got %q, want %q", i, got.Args[i], ci.Args[i])
		}
	}
}

func TestDefInfoRoundTrip(t *testing.T) {
	d := DefInfo{
		USR:      "c:@F@main#",
		Name:     "main",
		Location: Location{File: "f.cpp", Line: 1, Col: 5},
		Kind:     "FunctionDecl",
	}
	var buf bytes.Buffer
	if err := EncodeDefInfo(&buf, d); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeDefInfo(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != d {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
}

func TestReferenceRoundTrip(t *testing.T) {
	ref := Reference{
		Range:     SourceRange{File: "f.cpp", Line: 1, Col: 18, EndLine: 1, EndCol: 21},
		TargetUSR: "c:@var",
	}
	var buf bytes.Buffer
	if err := EncodeReference(&buf, ref); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeReference(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ref {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ref)
	}
}

func TestStringRoundTripUnicode(t *testing.T) {
	s := "café_日本語_\U0001F600"
	var buf bytes.Buffer
	if err := WriteString(&buf, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadString(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != s {
		t.Fatalf("round trip mismatch: got %q, want %q", got, s)
	}
}
