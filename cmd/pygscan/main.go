// Command pygscan stands in for the compiler in CC/CXX: it reports the
// observed compile command to the daemon, then execs the real compiler
// so the build proceeds unaffected. It never fails the build itself —
// a daemon that isn't running, or a socket error, is logged and
// ignored.
package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sfowler/pygmalion/internal/observer"
	"github.com/sfowler/pygmalion/internal/projectroot"
	"github.com/sfowler/pygmalion/internal/rpc"
)

const reportTimeout = 500 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "pygscan: usage: pygscan <real-compiler> [args...]")
		os.Exit(2)
	}
	realCompiler := os.Args[1]
	args := os.Args[2:]

	report(realCompiler, args)

	exe, err := exec.LookPath(realCompiler)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pygscan: %v\n", err)
		os.Exit(127)
	}

	argv := append([]string{realCompiler}, args...)
	if err := syscall.Exec(exe, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "pygscan: exec %s: %v\n", exe, err)
		os.Exit(126)
	}
}

// report tells the daemon about the observed compile command. Any
// failure (daemon not running, socket busy, project root not found) is
// swallowed: pygscan must never block or fail a build.
func report(realCompiler string, args []string) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	root, err := projectroot.Find(wd)
	if err != nil {
		return
	}
	ci := observer.BuildCommandInfo(wd, realCompiler, args, time.Now().Unix())
	if ci.SourceFile == "" {
		return
	}

	sock := projectroot.SocketPath(root)
	if _, statErr := os.Stat(sock); statErr != nil {
		return
	}

	resp, err := rpc.Call(sock, func(c net.Conn) error {
		return rpc.WriteObserveCommand(c, ci)
	}, reportTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pygscan: report to daemon: %v\n", err)
		return
	}
	if !resp.Ok {
		fmt.Fprintf(os.Stderr, "pygscan: daemon rejected observation: %s\n", resp.ErrorText)
	}
}
