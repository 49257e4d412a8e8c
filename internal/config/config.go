// Package config defines the ppview settings file and its validation
// rules. Settings arrive explicitly through Load and flag overrides; there
// is no process-global configuration cache.
package config

import (
	"fmt"
	"time"
)

// Permitted ranges for numeric settings. Values outside these bounds fail
// Validate rather than being silently clamped.
const (
	MinDebounceMS = 50
	MaxDebounceMS = 30000
	MinTimeoutMS  = 1000
	MaxTimeoutMS  = 600000
	MinMaxLines   = 100
	MaxMaxLines   = 500000
)

// Config is the complete settings snapshot handed to the application.
type Config struct {
	Tool    ToolConfig    `toml:"tool"`
	Run     RunConfig     `toml:"run"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
}

// ToolConfig locates and parameterizes the preprocessor.
type ToolConfig struct {
	// Path is the absolute path of the compiler driver.
	Path string `toml:"path"`
	// Bootstrap optionally names an environment setup script that must run
	// in the same shell before the tool (vcvars-style).
	Bootstrap string `toml:"bootstrap"`
	// Arguments is the user flag string; blank selects the defaults.
	Arguments string `toml:"arguments"`
	// AutoInclude enables the include-path resolvers.
	AutoInclude bool `toml:"auto_include"`
	// IncludeDirs lists additional include directories for the static
	// resolver.
	IncludeDirs []string `toml:"include_dirs"`
}

// RunConfig controls triggering and execution timing.
type RunConfig struct {
	DebounceMS int `toml:"debounce_ms"`
	TimeoutMS  int `toml:"timeout_ms"`
}

// Debounce returns the quiet period as a duration.
func (r RunConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

// Timeout returns the per-run timeout as a duration.
func (r RunConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// OutputConfig controls how much output the view retains.
type OutputConfig struct {
	MaxLines int `toml:"max_lines"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the settings used when no file and no flags override
// them.
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			AutoInclude: true,
		},
		Run: RunConfig{
			DebounceMS: 500,
			TimeoutMS:  30000,
		},
		Output: OutputConfig{
			MaxLines: 5000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks ranges and required fields. A nil receiver is rejected so
// callers can validate without a prior nil check.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if c.Tool.Path == "" {
		return fmt.Errorf("config: tool.path is required")
	}
	if c.Run.DebounceMS < MinDebounceMS || c.Run.DebounceMS > MaxDebounceMS {
		return fmt.Errorf("config: run.debounce_ms %d outside [%d, %d]",
			c.Run.DebounceMS, MinDebounceMS, MaxDebounceMS)
	}
	if c.Run.TimeoutMS < MinTimeoutMS || c.Run.TimeoutMS > MaxTimeoutMS {
		return fmt.Errorf("config: run.timeout_ms %d outside [%d, %d]",
			c.Run.TimeoutMS, MinTimeoutMS, MaxTimeoutMS)
	}
	if c.Output.MaxLines < MinMaxLines || c.Output.MaxLines > MaxMaxLines {
		return fmt.Errorf("config: output.max_lines %d outside [%d, %d]",
			c.Output.MaxLines, MinMaxLines, MaxMaxLines)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
