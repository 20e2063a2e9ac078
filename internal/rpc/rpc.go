// Package rpc frames the control-channel protocol spoken over the
// daemon's Unix domain socket. Two kinds of client dial this socket:
// pygscan, reporting one observed compile command per connection, and
// the pygmalion CLI, issuing one query or control verb per connection.
// Both reuse internal/fact's length-prefixed codec and internal/
// wireproto's one-byte-tag envelope idiom rather than inventing a
// second wire format.
package rpc

import (
	"fmt"
	"io"

	"github.com/sfowler/pygmalion/internal/fact"
)

// Verb tags identify the request on a single connection. Each
// connection carries exactly one request and one response, then closes.
const (
	VerbObserveCommand byte = iota + 1
	VerbLookupSymbol
	VerbCallers
	VerbCallees
	VerbBases
	VerbOverriders
	VerbReferences
	VerbDefinition
	VerbCompileFlags
	VerbIndex
	VerbStop
)

// Request is a decoded client-to-daemon message.
type Request struct {
	Verb byte

	// ObserveCommand, Index
	CommandInfo fact.CommandInfo

	// LookupSymbol, Callers, Callees, Bases, Overriders, References
	USR string

	// Definition
	Location fact.Location

	// CompileFlags
	SourceFile string
}

func WriteObserveCommand(w io.Writer, ci fact.CommandInfo) error {
	if err := writeVerb(w, VerbObserveCommand); err != nil {
		return err
	}
	return fact.EncodeCommandInfo(w, ci)
}

func WriteIndex(w io.Writer, ci fact.CommandInfo) error {
	if err := writeVerb(w, VerbIndex); err != nil {
		return err
	}
	return fact.EncodeCommandInfo(w, ci)
}

func writeUSRRequest(w io.Writer, verb byte, usr string) error {
	if err := writeVerb(w, verb); err != nil {
		return err
	}
	return fact.WriteString(w, usr)
}

func WriteLookupSymbol(w io.Writer, usr string) error { return writeUSRRequest(w, VerbLookupSymbol, usr) }
func WriteCallers(w io.Writer, usr string) error      { return writeUSRRequest(w, VerbCallers, usr) }
func WriteCallees(w io.Writer, usr string) error      { return writeUSRRequest(w, VerbCallees, usr) }
func WriteBases(w io.Writer, usr string) error        { return writeUSRRequest(w, VerbBases, usr) }
func WriteOverriders(w io.Writer, usr string) error   { return writeUSRRequest(w, VerbOverriders, usr) }
func WriteReferences(w io.Writer, usr string) error   { return writeUSRRequest(w, VerbReferences, usr) }

// WriteDefinition asks for every definition whose reference range
// covers loc: the cursor-based "go to definition" lookup named
// `definition <file> <line> <col>` on the CLI.
func WriteDefinition(w io.Writer, loc fact.Location) error {
	if err := writeVerb(w, VerbDefinition); err != nil {
		return err
	}
	return fact.EncodeLocation(w, loc)
}

func WriteCompileFlags(w io.Writer, sourceFile string) error {
	if err := writeVerb(w, VerbCompileFlags); err != nil {
		return err
	}
	return fact.WriteString(w, sourceFile)
}

func WriteStop(w io.Writer) error {
	return writeVerb(w, VerbStop)
}

// ReadRequest reads and decodes the single request a connection carries.
func ReadRequest(r io.Reader) (Request, error) {
	verb, err := readByte(r)
	if err != nil {
		return Request{}, err
	}
	switch verb {
	case VerbObserveCommand, VerbIndex:
		ci, err := fact.DecodeCommandInfo(r)
		return Request{Verb: verb, CommandInfo: ci}, err
	case VerbLookupSymbol, VerbCallers, VerbCallees, VerbBases, VerbOverriders, VerbReferences:
		usr, err := fact.ReadString(r)
		return Request{Verb: verb, USR: usr}, err
	case VerbDefinition:
		loc, err := fact.DecodeLocation(r)
		return Request{Verb: verb, Location: loc}, err
	case VerbCompileFlags:
		sf, err := fact.ReadString(r)
		return Request{Verb: verb, SourceFile: sf}, err
	case VerbStop:
		return Request{Verb: verb}, nil
	default:
		return Request{}, fmt.Errorf("rpc: unknown verb %d", verb)
	}
}

// Response is a decoded daemon-to-client message.
type Response struct {
	Ok          bool
	ErrorText   string
	Def         *fact.DefInfo
	Defs        []fact.DefInfo
	Ranges      []fact.SourceRange
	CommandInfo *fact.CommandInfo
}

const (
	statusOK byte = iota
	statusError
)

// payload kinds within a statusOK response, identifying which of
// Response's optional fields follows.
const (
	payloadEmpty byte = iota
	payloadDef
	payloadDefList
	payloadRangeList
	payloadCommandInfo
)

// WriteError sends a failed response carrying msg.
func WriteError(w io.Writer, msg string) error {
	if err := writeStatus(w, statusError); err != nil {
		return err
	}
	return fact.WriteString(w, msg)
}

// WriteEmptyOK sends a successful response with no payload (used by
// ObserveCommand, Index, Stop).
func WriteEmptyOK(w io.Writer) error {
	if err := writeStatus(w, statusOK); err != nil {
		return err
	}
	return writePayloadKind(w, payloadEmpty)
}

// WriteDefinitionResponse sends a possibly-nil DefInfo.
func WriteDefinitionResponse(w io.Writer, d *fact.DefInfo) error {
	if err := writeStatus(w, statusOK); err != nil {
		return err
	}
	if d == nil {
		return writePayloadKind(w, payloadEmpty)
	}
	if err := writePayloadKind(w, payloadDef); err != nil {
		return err
	}
	return fact.EncodeDefInfo(w, *d)
}

// WriteDefListResponse sends a list of definitions.
func WriteDefListResponse(w io.Writer, defs []fact.DefInfo) error {
	if err := writeStatus(w, statusOK); err != nil {
		return err
	}
	if err := writePayloadKind(w, payloadDefList); err != nil {
		return err
	}
	if err := fact.EncodeInt64(w, int64(len(defs))); err != nil {
		return err
	}
	for _, d := range defs {
		if err := fact.EncodeDefInfo(w, d); err != nil {
			return err
		}
	}
	return nil
}

// WriteRangeListResponse sends a list of source ranges.
func WriteRangeListResponse(w io.Writer, ranges []fact.SourceRange) error {
	if err := writeStatus(w, statusOK); err != nil {
		return err
	}
	if err := writePayloadKind(w, payloadRangeList); err != nil {
		return err
	}
	if err := fact.EncodeInt64(w, int64(len(ranges))); err != nil {
		return err
	}
	for _, rng := range ranges {
		if err := fact.EncodeSourceRange(w, rng); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommandInfoResponse sends a possibly-nil CommandInfo.
func WriteCommandInfoResponse(w io.Writer, ci *fact.CommandInfo) error {
	if err := writeStatus(w, statusOK); err != nil {
		return err
	}
	if ci == nil {
		return writePayloadKind(w, payloadEmpty)
	}
	if err := writePayloadKind(w, payloadCommandInfo); err != nil {
		return err
	}
	return fact.EncodeCommandInfo(w, *ci)
}

// ReadResponse reads and decodes the single response a connection
// carries.
func ReadResponse(r io.Reader) (Response, error) {
	status, err := readByte(r)
	if err != nil {
		return Response{}, err
	}
	if status == statusError {
		msg, err := fact.ReadString(r)
		if err != nil {
			return Response{}, err
		}
		return Response{Ok: false, ErrorText: msg}, nil
	}

	kind, err := readByte(r)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Ok: true}
	switch kind {
	case payloadEmpty:
	case payloadDef:
		d, err := fact.DecodeDefInfo(r)
		if err != nil {
			return Response{}, err
		}
		resp.Def = &d
	case payloadDefList:
		n, err := fact.DecodeInt64(r)
		if err != nil {
			return Response{}, err
		}
		resp.Defs = make([]fact.DefInfo, n)
		for i := range resp.Defs {
			if resp.Defs[i], err = fact.DecodeDefInfo(r); err != nil {
				return Response{}, err
			}
		}
	case payloadRangeList:
		n, err := fact.DecodeInt64(r)
		if err != nil {
			return Response{}, err
		}
		resp.Ranges = make([]fact.SourceRange, n)
		for i := range resp.Ranges {
			if resp.Ranges[i], err = fact.DecodeSourceRange(r); err != nil {
				return Response{}, err
			}
		}
	case payloadCommandInfo:
		ci, err := fact.DecodeCommandInfo(r)
		if err != nil {
			return Response{}, err
		}
		resp.CommandInfo = &ci
	default:
		return Response{}, fmt.Errorf("rpc: unknown payload kind %d", kind)
	}
	return resp, nil
}

func writeVerb(w io.Writer, verb byte) error {
	_, err := w.Write([]byte{verb})
	return err
}

func writeStatus(w io.Writer, status byte) error {
	_, err := w.Write([]byte{status})
	return err
}

func writePayloadKind(w io.Writer, kind byte) error {
	_, err := w.Write([]byte{kind})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
