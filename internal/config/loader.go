package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the recognized config file name at a project root.
const FileName = ".pygmalion.conf"

// validLogLevels are the eight syslog-style levels spec.md recognizes.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "notice": true, "warning": true,
	"error": true, "critical": true, "alert": true, "emergency": true,
}

// Loader loads .pygmalion.conf through a FileSystem, so tests can
// substitute a mock instead of touching disk.
type Loader struct {
	fs FileSystem
}

// NewLoader creates a Loader backed by fs.
func NewLoader(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// NewDefaultLoader creates a Loader backed by the real filesystem.
func NewDefaultLoader() *Loader {
	return NewLoader(RealFileSystem{})
}

// Load reads .pygmalion.conf from projectRoot. A missing file is not an
// error: Defaults() is returned unchanged. An present-but-empty or
// partial file has every unset key filled from Defaults().
func (l *Loader) Load(projectRoot string) (Config, error) {
	return l.LoadFromPath(projectRoot + string(os.PathSeparator) + FileName)
}

// LoadFromPath reads and parses the config file at path directly,
// bypassing project-root resolution. Used by tests and by callers that
// already know the exact file location.
func (l *Loader) LoadFromPath(path string) (Config, error) {
	cfg := Defaults()

	data, err := l.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.IndexingThreads < 0 {
		return Config{}, fmt.Errorf("config: %s: indexingThreads must be >= 0, got %d", path, cfg.IndexingThreads)
	}
	if !validLogLevels[cfg.LogLevel] {
		return Config{}, fmt.Errorf("config: %s: logLevel %q is not one of debug, info, notice, warning, error, critical, alert, emergency", path, cfg.LogLevel)
	}

	return cfg, nil
}
