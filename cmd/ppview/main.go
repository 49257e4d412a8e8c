// Package main is the entry point for ppview, a live preprocessor
// preview: it watches a C/C++ source file and re-runs the preprocessor
// after each quiet period, showing the shaped output as you edit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dshills/ppview/internal/app"
	"github.com/dshills/ppview/internal/config"
	"github.com/dshills/ppview/internal/includes"
	"github.com/dshills/ppview/internal/logging"
	"github.com/dshills/ppview/internal/preproc"
	"github.com/dshills/ppview/internal/view"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath string
	tool       string
	args       string
	bootstrap  string
	debounceMS int
	timeoutMS  int
	logLevel   string

	plain    bool
	once     bool
	jsonOut  bool
	toolInfo bool
	listArgs bool

	file string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	if opts.listArgs {
		printRecommendations(os.Stdout)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyOverrides(cfg, opts)

	logger, logClose, err := buildLogger(cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logClose()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.toolInfo {
		return toolInfo(ctx, cfg, logger)
	}

	if opts.file == "" {
		fmt.Fprintln(os.Stderr, "Error: no source file given")
		flag.Usage()
		return 2
	}

	if opts.once {
		return runOnce(ctx, cfg, opts, logger)
	}

	return runWatch(ctx, cfg, opts, logger)
}

// runWatch is the default mode: watch the file and re-run on edits until
// interrupted or the user quits the live view.
func runWatch(ctx context.Context, cfg *config.Config, opts cliOptions, logger *logging.Logger) int {
	var presenter view.Presenter
	if opts.plain {
		presenter = view.NewPlain(os.Stdout, cfg.Output.MaxLines)
	} else {
		live, err := view.NewLive(opts.file, cfg.Output.MaxLines)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize terminal: %v\n", err)
			return 1
		}
		presenter = live
	}

	application, err := app.New(app.Options{
		Config:    cfg,
		File:      opts.file,
		Presenter: presenter,
		Logger:    logger,
	})
	if err != nil {
		_ = presenter.Close()
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runOnce performs a single preprocessing pass and prints the result,
// machine-readable with -json.
func runOnce(ctx context.Context, cfg *config.Config, opts cliOptions, logger *logging.Logger) int {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	orch := preproc.New(
		preproc.WithResolver(resolverChain(cfg)),
		preproc.WithSourceDir(filepath.Dir(opts.file)),
		preproc.WithLogger(logger),
	)
	defer orch.Close()

	res, err := orch.Run(ctx, string(data), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.jsonOut {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	} else {
		view.NewPlain(os.Stdout, cfg.Output.MaxLines).ShowResult(res)
	}

	if !res.Success {
		return 1
	}
	return 0
}

// toolInfo reports whether the configured tool is usable: path validity,
// responsiveness, and the version banner.
func toolInfo(ctx context.Context, cfg *config.Config, logger *logging.Logger) int {
	path := cfg.Tool.Path
	fmt.Printf("Tool path: %s\n", path)

	if err := preproc.ValidateToolPath(path); err != nil {
		fmt.Printf("Valid:     no (%v)\n", err)
		return 1
	}
	fmt.Println("Valid:     yes")

	orch := preproc.New(preproc.WithLogger(logger))
	defer orch.Close()

	if orch.TestTool(ctx, path) {
		fmt.Println("Responds:  yes")
	} else {
		fmt.Println("Responds:  no")
		return 1
	}

	ver, err := orch.ToolVersion(ctx, path)
	if err != nil {
		fmt.Printf("Version:   unknown (%v)\n", err)
		return 0
	}
	fmt.Printf("Version:   %s\n", ver)
	return 0
}

// resolverChain builds the include-flag resolver order used by every run
// mode.
func resolverChain(cfg *config.Config) includes.Resolver {
	return includes.NewChain(
		includes.NewStatic(cfg.Tool.IncludeDirs),
		includes.NewCompileCommands(),
		includes.NewClangd(),
		includes.NewToolchain(),
	)
}

// printRecommendations writes the fixed flag reference table.
func printRecommendations(w io.Writer) {
	fmt.Fprintln(w, "Recommended preprocessor flags:")
	for _, rec := range preproc.RecommendedArguments() {
		fmt.Fprintf(w, "  %-18s %s\n", rec.Flag, rec.Description)
	}
}

// applyOverrides layers command-line flags over the loaded configuration.
func applyOverrides(cfg *config.Config, opts cliOptions) {
	if opts.tool != "" {
		cfg.Tool.Path = opts.tool
	}
	if opts.args != "" {
		cfg.Tool.Arguments = opts.args
	}
	if opts.bootstrap != "" {
		cfg.Tool.Bootstrap = opts.bootstrap
	}
	if opts.debounceMS > 0 {
		cfg.Run.DebounceMS = opts.debounceMS
	}
	if opts.timeoutMS > 0 {
		cfg.Run.TimeoutMS = opts.timeoutMS
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
}

// buildLogger constructs the application logger. The live view owns the
// terminal, so without a log file its diagnostics are discarded rather
// than scribbled over the screen.
func buildLogger(cfg *config.Config, opts cliOptions) (*logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger := logging.New(logging.Config{Level: level, Output: f, Prefix: "ppview"})
		return logger, func() { _ = f.Close() }, nil
	}

	if !opts.plain && !opts.once && !opts.toolInfo {
		return logging.Null, func() {}, nil
	}

	logger := logging.New(logging.Config{Level: level, Output: os.Stderr, Prefix: "ppview"})
	return logger, func() {}, nil
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.tool, "tool", "", "Path to the preprocessor executable")
	flag.StringVar(&opts.args, "args", "", "Preprocessor argument string")
	flag.StringVar(&opts.bootstrap, "bootstrap", "", "Environment bootstrap script run before the tool")
	flag.IntVar(&opts.debounceMS, "debounce", 0, "Quiet period in milliseconds before re-running")
	flag.IntVar(&opts.timeoutMS, "timeout", 0, "Per-run timeout in milliseconds")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.plain, "plain", false, "Print results to stdout instead of the full-screen view")
	flag.BoolVar(&opts.once, "once", false, "Run once and exit")
	flag.BoolVar(&opts.jsonOut, "json", false, "With -once, print the result as JSON")
	flag.BoolVar(&opts.toolInfo, "tool-info", false, "Validate and probe the configured tool, then exit")
	flag.BoolVar(&opts.listArgs, "list-args", false, "List recommended preprocessor flags, then exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ppview - live preprocessor preview\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ppview [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ppview main.cpp                 Watch a file in the live view\n")
		fmt.Fprintf(os.Stderr, "  ppview -plain main.cpp          Watch, printing to stdout\n")
		fmt.Fprintf(os.Stderr, "  ppview -once -json main.cpp     One run, machine-readable result\n")
		fmt.Fprintf(os.Stderr, "  ppview -tool-info               Check the configured tool\n")
		fmt.Fprintf(os.Stderr, "  ppview -list-args               Show recommended flags\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("ppview %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.logLevel != "" {
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
			os.Exit(1)
		}
	}

	if args := flag.Args(); len(args) > 0 {
		opts.file = args[0]
	}

	return opts
}
