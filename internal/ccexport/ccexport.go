// Package ccexport serializes the store's SourceFiles table to a
// compile_commands.json compilation database, and optionally keeps it
// fresh with a debounced watch on the store file's directory.
package ccexport

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sfowler/pygmalion/internal/fact"
	"github.com/sfowler/pygmalion/internal/scheduler"
)

// entry is one row of the compile_commands.json array, per the
// clang tooling convention: directory, the space-joined command line,
// and the file it compiles.
type entry struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
}

// Export writes compile_commands.json to outputPath, one entry per row
// of SourceFiles, with the command reconstructed as exe args...
// space-joined.
func Export(sched *scheduler.Scheduler, outputPath string) error {
	res := <-sched.ListSourceFiles()
	if res.Err != nil {
		return fmt.Errorf("ccexport: list source files: %w", res.Err)
	}

	entries := make([]entry, 0, len(res.Infos))
	for _, ci := range res.Infos {
		entries = append(entries, entry{
			Directory: ci.WorkingDir,
			Command:   commandLine(ci),
			File:      ci.SourceFile,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ccexport: marshal: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("ccexport: write %s: %w", outputPath, err)
	}
	return nil
}

func commandLine(ci fact.CommandInfo) string {
	parts := make([]string, 0, len(ci.Args)+1)
	parts = append(parts, ci.Command)
	parts = append(parts, ci.Args...)
	return strings.Join(parts, " ")
}
