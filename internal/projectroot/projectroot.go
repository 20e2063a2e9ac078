// Package projectroot locates the project a pygmalion executable is
// operating on: the nearest ancestor directory (starting from the
// current working directory) containing a .pygmalion.conf or an
// existing .pygmalion.sqlite store file.
package projectroot

import (
	"fmt"
	"os"
	"path/filepath"
)

// Markers are the file names whose presence in a directory identifies
// it as a project root.
var Markers = []string{".pygmalion.conf", ".pygmalion.sqlite"}

// Find walks up from start looking for a directory containing one of
// Markers. If none of the ancestors match, start itself is returned
// unchanged: a freshly-initialized project has neither file yet, and
// the daemon creates the store lazily at its working directory.
func Find(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("projectroot: resolve %s: %w", start, err)
	}

	dir := abs
	for {
		for _, marker := range Markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// SocketPath returns the control-socket path for the project at root.
func SocketPath(root string) string {
	return filepath.Join(root, ".pygmalion.sock")
}

// StorePath returns the SQLite store path for the project at root.
func StorePath(root string) string {
	return filepath.Join(root, ".pygmalion.sqlite")
}

// CompileCommandsPath returns the compile_commands.json export path.
func CompileCommandsPath(root string) string {
	return filepath.Join(root, "compile_commands.json")
}

// TagsPath returns the ctags export path.
func TagsPath(root string) string {
	return filepath.Join(root, "tags")
}
