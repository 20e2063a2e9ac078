package wireproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/sfowler/pygmalion/internal/fact"
)

func TestAnalyzeRequestRoundTrip(t *testing.T) {
	ci := fact.CommandInfo{SourceFile: "f.cpp", WorkingDir: "/proj", Command: "clang++", Args: []string{"-c"}}
	var buf bytes.Buffer
	if err := WriteAnalyzeRequest(&buf, ci); err != nil {
		t.Fatalf("write: %v", err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if req.Kind != RequestAnalyze || req.Analyze.SourceFile != ci.SourceFile {
		t.Fatalf("got %+v, want analyze of %+v", req, ci)
	}
}

func TestShutdownRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteShutdownRequest(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if req.Kind != RequestShutdown {
		t.Fatalf("got %+v, want shutdown", req)
	}
}

func TestOneAnalyzeTurnStreamsFactsThenEnd(t *testing.T) {
	var buf bytes.Buffer
	def := fact.DefInfo{USR: "u", Name: "n", Location: fact.Location{File: "f.cpp", Line: 1, Col: 1}, Kind: "VarDecl"}
	inc := fact.Inclusion{Includer: "f.cpp", Included: "g.h", Direct: true}

	if err := WriteFoundInclusion(&buf, inc); err != nil {
		t.Fatalf("write inclusion: %v", err)
	}
	if err := WriteFoundDefinition(&buf, def); err != nil {
		t.Fatalf("write def: %v", err)
	}
	if err := WriteEndOfDefs(&buf); err != nil {
		t.Fatalf("write end: %v", err)
	}

	var got []ResponseKind
	for {
		resp, err := ReadResponse(&buf)
		if err != nil {
			t.Fatalf("read response: %v", err)
		}
		got = append(got, resp.Kind)
		if resp.Kind == ResponseEndOfDefs {
			break
		}
	}
	if len(got) != 3 || got[0] != ResponseInclusion || got[1] != ResponseDefinition || got[2] != ResponseEndOfDefs {
		t.Fatalf("unexpected response sequence: %+v", got)
	}

	if _, err := ReadResponse(&buf); err != io.EOF {
		t.Fatalf("expected EOF after end-of-defs sentinel, got %v", err)
	}
}

func TestReadRequestRejectsUnknownTag(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF})
	if _, err := ReadRequest(buf); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}
