package fact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// Records serialize as the concatenation of their fields in declaration
// order. Strings are length-prefixed (uint32 big-endian byte count of
// the encoded payload) UTF-16 big-endian; any fixed, bijective encoding
// would satisfy the spec, UTF-16BE was chosen because it is what the
// worker's wire format has always used and the standard library's
// unicode/utf16 package makes it a self-contained codec.

// WriteString writes a length-prefixed UTF-16BE string to w.
func WriteString(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 4+2*len(units))
	binary.BigEndian.PutUint32(buf[0:4], uint32(2*len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(buf[4+2*i:6+2*i], u)
	}
	_, err := w.Write(buf)
	return err
}

// ReadString reads a length-prefixed UTF-16BE string from r.
func ReadString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	byteLen := binary.BigEndian.Uint32(lenBuf[:])
	if byteLen%2 != 0 {
		return "", fmt.Errorf("fact: odd UTF-16BE byte length %d", byteLen)
	}
	payload := make([]byte, byteLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", err
	}
	units := make([]uint16, byteLen/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(payload[2*i : 2*i+2])
	}
	return string(utf16.Decode(units)), nil
}

// EncodeInt64 writes a big-endian 64-bit integer, for callers outside
// this package that need to frame counts (e.g. internal/rpc's list
// responses) with the same primitive the record codecs use internally.
func EncodeInt64(w io.Writer, v int64) error { return writeInt64(w, v) }

// DecodeInt64 reads a big-endian 64-bit integer written by EncodeInt64.
func DecodeInt64(r io.Reader) (int64, error) { return readInt64(r) }

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// EncodeCommandInfo serializes a CommandInfo record.
func EncodeCommandInfo(w io.Writer, ci CommandInfo) error {
	if err := WriteString(w, ci.SourceFile); err != nil {
		return err
	}
	if err := WriteString(w, ci.WorkingDir); err != nil {
		return err
	}
	if err := WriteString(w, ci.Command); err != nil {
		return err
	}
	if err := writeInt64(w, int64(len(ci.Args))); err != nil {
		return err
	}
	for _, a := range ci.Args {
		if err := WriteString(w, a); err != nil {
			return err
		}
	}
	return writeInt64(w, ci.LastIndexed)
}

// DecodeCommandInfo deserializes a CommandInfo record.
func DecodeCommandInfo(r io.Reader) (CommandInfo, error) {
	var ci CommandInfo
	var err error
	if ci.SourceFile, err = ReadString(r); err != nil {
		return ci, err
	}
	if ci.WorkingDir, err = ReadString(r); err != nil {
		return ci, err
	}
	if ci.Command, err = ReadString(r); err != nil {
		return ci, err
	}
	n, err := readInt64(r)
	if err != nil {
		return ci, err
	}
	ci.Args = make([]string, n)
	for i := range ci.Args {
		if ci.Args[i], err = ReadString(r); err != nil {
			return ci, err
		}
	}
	if ci.LastIndexed, err = readInt64(r); err != nil {
		return ci, err
	}
	return ci, nil
}

// EncodeLocation serializes a Location record.
func EncodeLocation(w io.Writer, loc Location) error {
	if err := WriteString(w, loc.File); err != nil {
		return err
	}
	if err := writeInt64(w, int64(loc.Line)); err != nil {
		return err
	}
	return writeInt64(w, int64(loc.Col))
}

// DecodeLocation deserializes a Location record.
func DecodeLocation(r io.Reader) (Location, error) {
	var loc Location
	var err error
	if loc.File, err = ReadString(r); err != nil {
		return loc, err
	}
	line, err := readInt64(r)
	if err != nil {
		return loc, err
	}
	col, err := readInt64(r)
	if err != nil {
		return loc, err
	}
	loc.Line, loc.Col = int(line), int(col)
	return loc, nil
}

// EncodeDefInfo serializes a DefInfo record.
func EncodeDefInfo(w io.Writer, d DefInfo) error {
	if err := WriteString(w, d.USR); err != nil {
		return err
	}
	if err := WriteString(w, d.Name); err != nil {
		return err
	}
	if err := EncodeLocation(w, d.Location); err != nil {
		return err
	}
	return WriteString(w, d.Kind)
}

// DecodeDefInfo deserializes a DefInfo record.
func DecodeDefInfo(r io.Reader) (DefInfo, error) {
	var d DefInfo
	var err error
	if d.USR, err = ReadString(r); err != nil {
		return d, err
	}
	if d.Name, err = ReadString(r); err != nil {
		return d, err
	}
	if d.Location, err = DecodeLocation(r); err != nil {
		return d, err
	}
	if d.Kind, err = ReadString(r); err != nil {
		return d, err
	}
	return d, nil
}

// EncodeInclusion serializes an Inclusion record.
func EncodeInclusion(w io.Writer, inc Inclusion) error {
	if err := WriteString(w, inc.Includer); err != nil {
		return err
	}
	if err := WriteString(w, inc.Included); err != nil {
		return err
	}
	return writeBool(w, inc.Direct)
}

// DecodeInclusion deserializes an Inclusion record.
func DecodeInclusion(r io.Reader) (Inclusion, error) {
	var inc Inclusion
	var err error
	if inc.Includer, err = ReadString(r); err != nil {
		return inc, err
	}
	if inc.Included, err = ReadString(r); err != nil {
		return inc, err
	}
	if inc.Direct, err = readBool(r); err != nil {
		return inc, err
	}
	return inc, nil
}

// EncodeOverride serializes an Override record.
func EncodeOverride(w io.Writer, ov Override) error {
	if err := WriteString(w, ov.DefiningUSR); err != nil {
		return err
	}
	return WriteString(w, ov.OverriddenUSR)
}

// DecodeOverride deserializes an Override record.
func DecodeOverride(r io.Reader) (Override, error) {
	var ov Override
	var err error
	if ov.DefiningUSR, err = ReadString(r); err != nil {
		return ov, err
	}
	if ov.OverriddenUSR, err = ReadString(r); err != nil {
		return ov, err
	}
	return ov, nil
}

// EncodeCallEdge serializes a CallEdge record.
func EncodeCallEdge(w io.Writer, c CallEdge) error {
	if err := WriteString(w, c.CallerUSR); err != nil {
		return err
	}
	return WriteString(w, c.CalleeUSR)
}

// DecodeCallEdge deserializes a CallEdge record.
func DecodeCallEdge(r io.Reader) (CallEdge, error) {
	var c CallEdge
	var err error
	if c.CallerUSR, err = ReadString(r); err != nil {
		return c, err
	}
	if c.CalleeUSR, err = ReadString(r); err != nil {
		return c, err
	}
	return c, nil
}

// EncodeSourceRange serializes a SourceRange record.
func EncodeSourceRange(w io.Writer, rng SourceRange) error {
	if err := WriteString(w, rng.File); err != nil {
		return err
	}
	for _, v := range []int{rng.Line, rng.Col, rng.EndLine, rng.EndCol} {
		if err := writeInt64(w, int64(v)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSourceRange deserializes a SourceRange record.
func DecodeSourceRange(r io.Reader) (SourceRange, error) {
	var rng SourceRange
	var err error
	if rng.File, err = ReadString(r); err != nil {
		return rng, err
	}
	vals := make([]int, 4)
	for i := range vals {
		v, err := readInt64(r)
		if err != nil {
			return rng, err
		}
		vals[i] = int(v)
	}
	rng.Line, rng.Col, rng.EndLine, rng.EndCol = vals[0], vals[1], vals[2], vals[3]
	return rng, nil
}

// EncodeReference serializes a Reference record.
func EncodeReference(w io.Writer, ref Reference) error {
	if err := EncodeSourceRange(w, ref.Range); err != nil {
		return err
	}
	return WriteString(w, ref.TargetUSR)
}

// DecodeReference deserializes a Reference record.
func DecodeReference(r io.Reader) (Reference, error) {
	var ref Reference
	var err error
	if ref.Range, err = DecodeSourceRange(r); err != nil {
		return ref, err
	}
	if ref.TargetUSR, err = ReadString(r); err != nil {
		return ref, err
	}
	return ref, nil
}

// MarshalCommandInfo returns the byte-exact wire encoding of ci, for
// callers that need the encoded form in memory rather than written to a
// stream.
func MarshalCommandInfo(ci CommandInfo) []byte {
	var buf bytes.Buffer
	_ = EncodeCommandInfo(&buf, ci)
	return buf.Bytes()
}
