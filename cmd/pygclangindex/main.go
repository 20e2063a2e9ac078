// Command pygclangindex is the semantic-index worker: it reads Analyze
// requests from stdin, scans the named translation unit, and streams
// the resulting facts back on stdout until told to shut down.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sfowler/pygmalion/internal/cindex"
	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/wireproto"
)

func main() {
	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)

	if err := run(in, out); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "pygclangindex: %v\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out *bufio.Writer) error {
	for {
		req, err := wireproto.ReadRequest(in)
		if err != nil {
			return err
		}

		switch req.Kind {
		case wireproto.RequestShutdown:
			return nil
		case wireproto.RequestAnalyze:
			if err := analyze(out, req.Analyze); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return err
			}
		}
	}
}

func analyze(out io.Writer, ci fact.CommandInfo) error {
	src, err := os.ReadFile(ci.SourceFile)
	if err != nil {
		// Can't read the file; report an empty result for this turn
		// rather than desyncing the protocol.
		return wireproto.WriteEndOfDefs(out)
	}

	res := cindex.Analyze(ci.SourceFile, src)

	for _, inc := range res.Inclusions {
		if err := wireproto.WriteFoundInclusion(out, inc); err != nil {
			return err
		}
	}
	for _, d := range res.Defs {
		if err := wireproto.WriteFoundDefinition(out, d); err != nil {
			return err
		}
	}
	for _, ov := range res.Overrides {
		if err := wireproto.WriteFoundOverride(out, ov); err != nil {
			return err
		}
	}
	for _, c := range res.Calls {
		if err := wireproto.WriteFoundCallEdge(out, c); err != nil {
			return err
		}
	}
	for _, ref := range res.Refs {
		if err := wireproto.WriteFoundReference(out, ref); err != nil {
			return err
		}
	}

	return wireproto.WriteEndOfDefs(out)
}
