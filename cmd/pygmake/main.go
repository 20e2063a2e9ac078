// Command pygmake wraps the project's build: it redirects CC and CXX
// through pygscan, so every compile invocation is observed, then runs
// the configured make template with the CLI arguments substituted in.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/sfowler/pygmalion/internal/config"
	"github.com/sfowler/pygmalion/internal/projectroot"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pygmake: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := projectroot.Find(wd)
	if err != nil {
		return fmt.Errorf("locate project root: %w", err)
	}

	cfg, err := config.NewDefaultLoader().Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cc, err := exec.LookPath("cc")
	if err != nil {
		cc = "cc"
	}
	cxx, err := exec.LookPath("c++")
	if err != nil {
		cxx = "c++"
	}

	command := config.ExpandMake(cfg.Make, root, args)

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = root
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"CC=pygscan "+cc,
		"CXX=pygscan "+cxx,
	)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("run build: %w", err)
	}
	return nil
}
