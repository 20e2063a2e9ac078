// Package wireproto frames the turn-based binary protocol spoken between
// the core process and a semantic-index worker subprocess over its
// standard input and output streams. Every message is a one-byte tag,
// followed (except for Shutdown and EndOfDefs, which carry nothing) by a
// fact-record payload encoded with internal/fact's codec.
package wireproto

import (
	"fmt"
	"io"

	"github.com/sfowler/pygmalion/internal/fact"
)

// Request tags: sent from core to worker on the worker's stdin.
const (
	tagAnalyze byte = iota + 1
	tagShutdownRequest
)

// Response tags: sent from worker to core on the worker's stdout. A
// worker replies to one Analyze with zero or more fact messages
// followed by a single tagEndOfDefs, then waits for the next request.
const (
	tagFoundInclusion byte = iota + 1
	tagFoundDefinition
	tagFoundOverride
	tagFoundCallEdge
	tagFoundReference
	tagEndOfDefs
)

// RequestKind discriminates a decoded Request.
type RequestKind int

const (
	RequestAnalyze RequestKind = iota
	RequestShutdown
)

// Request is a decoded core-to-worker message.
type Request struct {
	Kind    RequestKind
	Analyze fact.CommandInfo
}

// WriteAnalyzeRequest asks the worker to index ci.
func WriteAnalyzeRequest(w io.Writer, ci fact.CommandInfo) error {
	if _, err := w.Write([]byte{tagAnalyze}); err != nil {
		return err
	}
	return fact.EncodeCommandInfo(w, ci)
}

// WriteShutdownRequest asks the worker to exit cleanly.
func WriteShutdownRequest(w io.Writer) error {
	_, err := w.Write([]byte{tagShutdownRequest})
	return err
}

// ReadRequest reads and decodes the next core-to-worker message.
func ReadRequest(r io.Reader) (Request, error) {
	tag, err := readTag(r)
	if err != nil {
		return Request{}, err
	}
	switch tag {
	case tagAnalyze:
		ci, err := fact.DecodeCommandInfo(r)
		if err != nil {
			return Request{}, fmt.Errorf("wireproto: decode analyze request: %w", err)
		}
		return Request{Kind: RequestAnalyze, Analyze: ci}, nil
	case tagShutdownRequest:
		return Request{Kind: RequestShutdown}, nil
	default:
		return Request{}, fmt.Errorf("wireproto: unknown request tag %d", tag)
	}
}

// ResponseKind discriminates a decoded Response.
type ResponseKind int

const (
	ResponseInclusion ResponseKind = iota
	ResponseDefinition
	ResponseOverride
	ResponseCallEdge
	ResponseReference
	ResponseEndOfDefs
)

// Response is a decoded worker-to-core message.
type Response struct {
	Kind       ResponseKind
	Inclusion  fact.Inclusion
	Definition fact.DefInfo
	Override   fact.Override
	CallEdge   fact.CallEdge
	Reference  fact.Reference
}

func WriteFoundInclusion(w io.Writer, inc fact.Inclusion) error {
	if _, err := w.Write([]byte{tagFoundInclusion}); err != nil {
		return err
	}
	return fact.EncodeInclusion(w, inc)
}

func WriteFoundDefinition(w io.Writer, d fact.DefInfo) error {
	if _, err := w.Write([]byte{tagFoundDefinition}); err != nil {
		return err
	}
	return fact.EncodeDefInfo(w, d)
}

func WriteFoundOverride(w io.Writer, ov fact.Override) error {
	if _, err := w.Write([]byte{tagFoundOverride}); err != nil {
		return err
	}
	return fact.EncodeOverride(w, ov)
}

func WriteFoundCallEdge(w io.Writer, c fact.CallEdge) error {
	if _, err := w.Write([]byte{tagFoundCallEdge}); err != nil {
		return err
	}
	return fact.EncodeCallEdge(w, c)
}

func WriteFoundReference(w io.Writer, ref fact.Reference) error {
	if _, err := w.Write([]byte{tagFoundReference}); err != nil {
		return err
	}
	return fact.EncodeReference(w, ref)
}

// WriteEndOfDefs terminates one Analyze turn.
func WriteEndOfDefs(w io.Writer) error {
	_, err := w.Write([]byte{tagEndOfDefs})
	return err
}

// ReadResponse reads and decodes the next worker-to-core message.
func ReadResponse(r io.Reader) (Response, error) {
	tag, err := readTag(r)
	if err != nil {
		return Response{}, err
	}
	switch tag {
	case tagFoundInclusion:
		inc, err := fact.DecodeInclusion(r)
		return Response{Kind: ResponseInclusion, Inclusion: inc}, err
	case tagFoundDefinition:
		d, err := fact.DecodeDefInfo(r)
		return Response{Kind: ResponseDefinition, Definition: d}, err
	case tagFoundOverride:
		ov, err := fact.DecodeOverride(r)
		return Response{Kind: ResponseOverride, Override: ov}, err
	case tagFoundCallEdge:
		c, err := fact.DecodeCallEdge(r)
		return Response{Kind: ResponseCallEdge, CallEdge: c}, err
	case tagFoundReference:
		ref, err := fact.DecodeReference(r)
		return Response{Kind: ResponseReference, Reference: ref}, err
	case tagEndOfDefs:
		return Response{Kind: ResponseEndOfDefs}, nil
	default:
		return Response{}, fmt.Errorf("wireproto: unknown response tag %d", tag)
	}
}

func readTag(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
