package config

// Config is the parsed shape of .pygmalion.conf. Every field has a
// documented default, applied by Defaults before Load returns.
type Config struct {
	// Make is the build command template. $(args) expands to the CLI
	// arguments passed to pygmake (appended verbatim if the template
	// doesn't mention it); $(projectroot) expands to the project root.
	Make string `yaml:"make"`

	// IndexingThreads is the worker pool size. Zero means one worker
	// per core.
	IndexingThreads int `yaml:"indexingThreads"`

	// CompilationDatabase, when true, regenerates compile_commands.json
	// after every index pass.
	CompilationDatabase bool `yaml:"compilationDatabase"`

	// Tags, when true, regenerates a ctags file after every index pass.
	Tags bool `yaml:"tags"`

	// LogLevel is one of the eight syslog-style levels; see
	// internal/logging for the mapping onto slog's four levels.
	LogLevel string `yaml:"logLevel"`
}

// Defaults returns the configuration used when .pygmalion.conf is
// absent, and is also the base every loaded file is merged onto.
func Defaults() Config {
	return Config{
		Make:                "make",
		IndexingThreads:     4,
		CompilationDatabase: false,
		Tags:                false,
		LogLevel:            "info",
	}
}
