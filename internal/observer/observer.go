// Package observer holds the pure, testable half of pygscan: deciding
// which of the real compiler's arguments names the source file being
// compiled, and building the CommandInfo that gets reported to the
// daemon. Process replacement (exec of the real compiler) stays in
// cmd/pygscan, since it is inherently untestable in-process.
package observer

import (
	"path/filepath"
	"strings"

	"github.com/sfowler/pygmalion/internal/fact"
)

// sourceExtensions are the C/C++ translation-unit suffixes pygscan
// recognizes. Header-only invocations (no argument matches) still
// produce a CommandInfo with SourceFile left empty; pygscan does not
// report such a command to the daemon.
var sourceExtensions = []string{".c", ".cc", ".cpp", ".cxx", ".c++", ".m", ".mm"}

// ExtractSourceFile returns the last argument that looks like a C/C++
// translation unit, or "" if none does. "Last" matters because compilers
// accept multiple positional operands in some invocations (rare for a
// single -c compile, but the last one is the conventional choice when it
// happens).
func ExtractSourceFile(args []string) string {
	var found string
	skipNext := false
	for _, a := range args {
		if skipNext {
			skipNext = false
			continue
		}
		// Flags taking a separate-argument value that could otherwise be
		// mistaken for a positional operand.
		if a == "-o" || a == "-isystem" || a == "-include" || a == "-I" || a == "-D" {
			skipNext = true
			continue
		}
		if strings.HasPrefix(a, "-") {
			continue
		}
		if hasSourceExtension(a) {
			found = a
		}
	}
	return found
}

func hasSourceExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, se := range sourceExtensions {
		if ext == se {
			return true
		}
	}
	return false
}

// BuildCommandInfo assembles the CommandInfo pygscan reports for one
// invocation of realCompiler with the given arguments, run from
// workingDir at unix time now.
func BuildCommandInfo(workingDir, realCompiler string, args []string, now int64) fact.CommandInfo {
	return fact.CommandInfo{
		SourceFile:  ExtractSourceFile(args),
		WorkingDir:  workingDir,
		Command:     realCompiler,
		Args:        append([]string(nil), args...),
		LastIndexed: now,
	}
}
