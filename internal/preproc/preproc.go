// Package preproc orchestrates preprocessor runs: it turns source text and
// a configuration snapshot into a sanitized command line, a scratch input
// file, one supervised tool invocation, and a shaped result. Process-level
// problems (bad tool path, non-zero exits, timeouts, cancellation) are
// reported inside the Result; only blank input and missing configuration
// are returned as errors.
package preproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/ppview/internal/cmdline"
	"github.com/dshills/ppview/internal/config"
	"github.com/dshills/ppview/internal/includes"
	"github.com/dshills/ppview/internal/logging"
	"github.com/dshills/ppview/internal/runner"
	"github.com/dshills/ppview/internal/scratch"
)

var (
	// ErrEmptySource is returned by Run for blank source text.
	ErrEmptySource = errors.New("preproc: source text is empty")
	// ErrNilConfig is returned by Run when no configuration is supplied.
	ErrNilConfig = errors.New("preproc: configuration is nil")
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("preproc: orchestrator is closed")
)

const (
	// sourceExt is the extension given to scratch input files.
	sourceExt = ".cpp"
	// bannerSuppressFlag asks the tool not to print its logo banner.
	bannerSuppressFlag = "/nologo"
	// utf8Flag forces UTF-8 source and execution character sets.
	utf8Flag = "/utf-8"
	// probeTimeout bounds the quick TestTool / ToolVersion invocations.
	probeTimeout = 5 * time.Second
)

// Orchestrator coordinates scratch files, command-line assembly, and
// process execution for preprocessor runs. It owns its Runner and Store
// for its lifetime; Close releases both.
type Orchestrator struct {
	runner    *runner.Runner
	store     *scratch.Store
	resolver  includes.Resolver
	logger    *logging.Logger
	sourceDir string
	closed    atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver installs the include-flag resolver consulted when
// auto-include is enabled.
func WithResolver(r includes.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSourceDir records the directory of the file being previewed, so the
// include resolvers can find project configuration near it.
func WithSourceDir(dir string) Option {
	return func(o *Orchestrator) { o.sourceDir = dir }
}

// WithScratchDir overrides the scratch directory. Used by tests.
func WithScratchDir(dir string) Option {
	return func(o *Orchestrator) {
		o.store = scratch.NewStore(scratch.WithBaseDir(dir))
	}
}

// New returns an Orchestrator with a fresh process runner and scratch
// store.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner: runner.New(),
		store:  scratch.NewStore(),
		logger: logging.Null,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("preproc")
	return o
}

// Run preprocesses sourceText under cfg and returns a shaped Result.
//
// Blank source text and a nil configuration are caller mistakes and come
// back as errors. Everything else — invalid configuration, unusable tool
// path, launch failures, non-zero exits, timeouts, cancellation — is
// reported through the Result so callers render one structured outcome
// instead of handling faults for routine tool errors.
func (o *Orchestrator) Run(ctx context.Context, sourceText string, cfg *config.Config) (*Result, error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if strings.TrimSpace(sourceText) == "" {
		return nil, ErrEmptySource
	}

	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return failure(started, err.Error()), nil
	}
	if err := ValidateToolPath(cfg.Tool.Path); err != nil {
		return failure(started, err.Error()), nil
	}

	srcPath, err := o.store.CreateSourceFile(sourceText, sourceExt)
	if err != nil {
		return failure(started, fmt.Sprintf("could not create scratch file: %v", err)), nil
	}
	// The scratch file is deleted on every exit path. A failed delete is
	// logged and otherwise ignored; it must never mask the run outcome.
	defer func() {
		if !o.store.Delete(srcPath) {
			o.logger.Warn("scratch file not deleted: %s", srcPath)
		}
	}()

	exe := cfg.Tool.Path
	args := o.buildArgs(ctx, cfg, srcPath)

	if script := strings.TrimSpace(cfg.Tool.Bootstrap); script != "" {
		if _, statErr := os.Stat(script); statErr == nil {
			exe, args = shellChain(script, cfg.Tool.Path, args)
		} else {
			o.logger.Warn("bootstrap script missing, running tool directly: %s", script)
		}
	}

	o.logger.Debug("running: %s %s", cmdline.QuoteIfNeeded(exe), cmdline.Join(args))

	out, execErr := o.runner.Execute(ctx, runner.Options{
		Executable: exe,
		Args:       args,
		Dir:        o.store.Dir(),
		Timeout:    cfg.Run.Timeout(),
	})
	if execErr != nil {
		return failure(started, execErr.Error()), nil
	}

	return shape(started, out), nil
}

// buildArgs assembles the tool argument vector: banner suppression first,
// discovered include flags, then the user's flags (or the defaults), the
// output-encoding flag, and the scratch file path last.
func (o *Orchestrator) buildArgs(ctx context.Context, cfg *config.Config, srcPath string) []string {
	args := []string{bannerSuppressFlag}

	if cfg.Tool.AutoInclude && o.resolver != nil {
		flags, err := o.resolver.IncludeFlags(ctx, cfg.Tool.Path, o.sourceDir)
		if err != nil {
			o.logger.Warn("include resolution failed: %v", err)
		} else if flags != "" {
			args = append(args, cmdline.Tokenize(flags)...)
		}
	}

	if user := strings.TrimSpace(cfg.Tool.Arguments); user != "" {
		args = append(args, cmdline.Tokenize(user)...)
	} else {
		args = append(args, DefaultArguments()...)
	}

	return append(args, utf8Flag, srcPath)
}

// ScratchInfo reports the scratch directory's current usage.
func (o *Orchestrator) ScratchInfo() scratch.DirInfo {
	return o.store.DirectoryInfo()
}

// Close stops every in-flight invocation and removes the scratch files.
// Close is idempotent.
func (o *Orchestrator) Close() error {
	if o.closed.Swap(true) {
		return nil
	}
	return errors.Join(o.runner.Close(), o.store.Close())
}
