// Command pygmalion is the query client: it dials the running daemon's
// control socket, issues one request, prints the reply, and exits.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/projectroot"
	"github.com/sfowler/pygmalion/internal/rpc"
)

const dialTimeout = 2 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	root, err := projectroot.Find(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pygmalion: %v\n", err)
		os.Exit(1)
	}
	sock := projectroot.SocketPath(root)

	if err := dispatch(sock, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "pygmalion: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pygmalion <command> [args]

commands:
  definition <file> <line> <col>
  callers <usr>
  callees <usr>
  bases <usr>
  overrides <usr>
  references <usr>
  compile-flags <file>
  --index <compiler> <file> [args...]
  --stop`)
}

func dispatch(sock, cmd string, args []string) error {
	switch cmd {
	case "callers":
		return usrCommand(sock, args, rpc.WriteCallers, printDefs)
	case "callees":
		return usrCommand(sock, args, rpc.WriteCallees, printDefs)
	case "bases":
		return usrCommand(sock, args, rpc.WriteBases, printDefs)
	case "overrides":
		return usrCommand(sock, args, rpc.WriteOverriders, printDefs)
	case "references":
		return usrCommand(sock, args, rpc.WriteReferences, printRanges)

	case "definition":
		if len(args) != 3 {
			return fmt.Errorf("usage: definition <file> <line> <col>")
		}
		line, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid line %q: %w", args[1], err)
		}
		col, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid col %q: %w", args[2], err)
		}
		loc := fact.Location{File: args[0], Line: line, Col: col}
		resp, err := call(sock, func(w io.Writer) error { return rpc.WriteDefinition(w, loc) })
		if err != nil {
			return err
		}
		if !resp.Ok {
			return fmt.Errorf("%s", resp.ErrorText)
		}
		printDefs(resp)
		return nil

	case "compile-flags":
		if len(args) != 1 {
			return fmt.Errorf("usage: compile-flags <file>")
		}
		resp, err := call(sock, func(w io.Writer) error { return rpc.WriteCompileFlags(w, args[0]) })
		if err != nil {
			return err
		}
		if !resp.Ok {
			return fmt.Errorf("%s", resp.ErrorText)
		}
		if resp.CommandInfo != nil {
			printCommandInfo(*resp.CommandInfo)
		}
		return nil

	case "--index":
		if len(args) < 2 {
			return fmt.Errorf("usage: --index <compiler> <file> [args...]")
		}
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		ci := fact.CommandInfo{
			SourceFile: args[1],
			WorkingDir: wd,
			Command:    args[0],
			Args:       args[1:],
		}
		resp, err := call(sock, func(w io.Writer) error { return rpc.WriteIndex(w, ci) })
		if err != nil {
			return err
		}
		if !resp.Ok {
			return fmt.Errorf("%s", resp.ErrorText)
		}
		return nil

	case "--stop":
		resp, err := call(sock, rpc.WriteStop)
		if err != nil {
			return err
		}
		if !resp.Ok {
			return fmt.Errorf("%s", resp.ErrorText)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func call(sock string, write func(io.Writer) error) (rpc.Response, error) {
	return rpc.Call(sock, func(c net.Conn) error { return write(c) }, dialTimeout)
}

func usrCommand(sock string, args []string, write func(io.Writer, string) error, print func(rpc.Response)) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: <command> <usr>")
	}
	resp, err := call(sock, func(w io.Writer) error { return write(w, args[0]) })
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("%s", resp.ErrorText)
	}
	print(resp)
	return nil
}

func printDefs(resp rpc.Response) {
	for _, d := range resp.Defs {
		fmt.Printf("%s\t%s\t%s:%d:%d\t%s\n", d.USR, d.Name, d.Location.File, d.Location.Line, d.Location.Col, d.Kind)
	}
}

func printRanges(resp rpc.Response) {
	for _, r := range resp.Ranges {
		fmt.Printf("%s:%d:%d-%d:%d\n", r.File, r.Line, r.Col, r.EndLine, r.EndCol)
	}
}

func printCommandInfo(ci fact.CommandInfo) {
	fmt.Printf("%s\t%s\t%s", ci.WorkingDir, ci.Command, ci.SourceFile)
	for _, a := range ci.Args {
		fmt.Printf(" %s", a)
	}
	fmt.Println()
}
