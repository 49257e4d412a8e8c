package preproc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dshills/ppview/internal/config"
)

// fakeTool writes a POSIX shell script posing as the preprocessor and
// returns its absolute path. The script name matches the expected tool
// name so it passes path validation.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive POSIX shell tools")
	}
	path := filepath.Join(t.TempDir(), "cl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func testConfig(toolPath string) *config.Config {
	cfg := config.Default()
	cfg.Tool.Path = toolPath
	cfg.Tool.AutoInclude = false
	return cfg
}

func newOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithScratchDir(filepath.Join(t.TempDir(), "scratch"))}, opts...)
	o := New(opts...)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestRunFaultsOnBlankSource(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(fakeTool(t, "exit 0"))

	for _, src := range []string{"", "   ", "\n\t\n"} {
		if _, err := o.Run(context.Background(), src, cfg); !errors.Is(err, ErrEmptySource) {
			t.Errorf("source %q: got %v, want ErrEmptySource", src, err)
		}
	}
}

func TestRunFaultsOnNilConfig(t *testing.T) {
	o := newOrchestrator(t)
	if _, err := o.Run(context.Background(), "int x;", nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("got %v, want ErrNilConfig", err)
	}
}

func TestRunInvalidConfigIsFailureOutcome(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(fakeTool(t, "exit 0"))
	cfg.Run.DebounceMS = 1 // below the permitted range

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("config problems must not be faults: %v", err)
	}
	if res.Success {
		t.Error("Success = true for invalid configuration")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.ErrorText == "" {
		t.Error("ErrorText is empty")
	}
}

func TestRunMissingToolIsFailureOutcome(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(filepath.Join(t.TempDir(), "cl"))

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("missing tool must not be a fault: %v", err)
	}
	if res.Success || res.ExitCode != -1 || res.ErrorText == "" {
		t.Errorf("unexpected result for missing tool: %+v", res)
	}
}

func TestRunWrongToolNameIsFailureOutcome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tests drive POSIX shell tools")
	}
	path := filepath.Join(t.TempDir(), "gcc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}

	o := newOrchestrator(t)
	res, err := o.Run(context.Background(), "int x;", testConfig(path))
	if err != nil {
		t.Fatalf("wrong tool name must not be a fault: %v", err)
	}
	if res.Success || res.ErrorText == "" {
		t.Errorf("unexpected result for wrong tool name: %+v", res)
	}
}

func TestRunSuccessStripsNoise(t *testing.T) {
	tool := fakeTool(t, `echo "Microsoft (R) C/C++ Optimizing Compiler Version 19.38"
echo "Copyright (C) Microsoft Corporation.  All rights reserved."
echo ""
echo "int x = 1;"`)
	o := newOrchestrator(t)

	res, err := o.Run(context.Background(), "int x = 1;", testConfig(tool))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.Output != "int x = 1;" {
		t.Errorf("Output = %q, want only the legitimate line", res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.ErrorText != "" {
		t.Errorf("ErrorText = %q, want empty", res.ErrorText)
	}
}

func TestRunBlankOutputGetsMarker(t *testing.T) {
	o := newOrchestrator(t)
	res, err := o.Run(context.Background(), "int x;", testConfig(fakeTool(t, "exit 0")))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.Output != noOutputMessage {
		t.Errorf("Output = %q, want the no-output marker", res.Output)
	}
}

func TestRunNonZeroExitPrefersStderr(t *testing.T) {
	o := newOrchestrator(t)
	res, err := o.Run(context.Background(), "int x;", testConfig(fakeTool(t, "echo boom >&2; exit 2")))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Error("Success = true for non-zero exit")
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}
	if res.ErrorText != "boom" {
		t.Errorf("ErrorText = %q, want stderr text", res.ErrorText)
	}
}

func TestRunNonZeroExitWithoutStderr(t *testing.T) {
	o := newOrchestrator(t)
	res, err := o.Run(context.Background(), "int x;", testConfig(fakeTool(t, "exit 3")))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ErrorText != "exit code 3" {
		t.Errorf("ErrorText = %q, want \"exit code 3\"", res.ErrorText)
	}
}

func TestRunCancelled(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(fakeTool(t, "sleep 10"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := o.Run(ctx, "int x;", cfg)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("cancellation must not be a fault: %v", err)
	}
	if res.Success {
		t.Error("Success = true for cancelled run")
	}
	if res.ErrorText != cancelledMessage {
		t.Errorf("ErrorText = %q, want %q", res.ErrorText, cancelledMessage)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Output != "" {
		t.Errorf("cancelled run surfaced partial output: %q", res.Output)
	}
	if elapsed > 3*time.Second {
		t.Errorf("cancelled run took %v, should resolve promptly", elapsed)
	}
}

func TestRunTimeout(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(fakeTool(t, "sleep 10"))
	cfg.Run.TimeoutMS = 1000

	start := time.Now()
	res, err := o.Run(context.Background(), "int x;", cfg)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("timeout must not be a fault: %v", err)
	}
	if res.Success {
		t.Error("Success = true for timed-out run")
	}
	if !strings.Contains(res.ErrorText, "timed out") {
		t.Errorf("ErrorText = %q, want a timeout description", res.ErrorText)
	}
	if elapsed < time.Second || elapsed > 4*time.Second {
		t.Errorf("timed-out run took %v, want roughly 1-2s", elapsed)
	}
}

func TestRunDeletesScratchFileOnAllPaths(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"success", "exit 0"},
		{"failure", "exit 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t)
			if _, err := o.Run(context.Background(), "int x;", testConfig(fakeTool(t, tt.script))); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if info := o.ScratchInfo(); info.FileCount != 0 {
				t.Errorf("scratch directory still holds %d files", info.FileCount)
			}
		})
	}
}

func TestRunArgumentOrder(t *testing.T) {
	// The fake tool echoes its arguments so the test can observe the
	// final vector.
	tool := fakeTool(t, `echo "$@"`)
	o := newOrchestrator(t)
	cfg := testConfig(tool)
	cfg.Tool.Arguments = "/EP /DFOO=1"

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	tokens := strings.Fields(res.Output)
	if len(tokens) < 5 {
		t.Fatalf("unexpected argument vector: %v", tokens)
	}
	if tokens[0] != "/nologo" {
		t.Errorf("first argument = %q, want /nologo", tokens[0])
	}
	if tokens[1] != "/EP" || tokens[2] != "/DFOO=1" {
		t.Errorf("user flags out of place: %v", tokens)
	}
	if tokens[len(tokens)-2] != "/utf-8" {
		t.Errorf("second-to-last argument = %q, want /utf-8", tokens[len(tokens)-2])
	}
	if !strings.HasSuffix(tokens[len(tokens)-1], ".cpp") {
		t.Errorf("last argument = %q, want the scratch file path", tokens[len(tokens)-1])
	}
}

func TestRunBlankArgumentsSelectDefaults(t *testing.T) {
	tool := fakeTool(t, `echo "$@"`)
	o := newOrchestrator(t)
	cfg := testConfig(tool)
	cfg.Tool.Arguments = "   "

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	tokens := strings.Fields(res.Output)
	if len(tokens) < 4 || tokens[1] != "/EP" || tokens[2] != "/C" {
		t.Errorf("defaults missing from vector: %v", tokens)
	}
}

type stubResolver struct{ flags string }

func (s stubResolver) Name() string { return "stub" }

func (s stubResolver) IncludeFlags(context.Context, string, string) (string, error) {
	return s.flags, nil
}

func TestRunAutoIncludeSplicesResolverFlags(t *testing.T) {
	tool := fakeTool(t, `echo "$@"`)
	o := newOrchestrator(t, WithResolver(stubResolver{flags: "/Ifirst /Isecond"}))
	cfg := testConfig(tool)
	cfg.Tool.AutoInclude = true

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	tokens := strings.Fields(res.Output)
	if len(tokens) < 4 || tokens[1] != "/Ifirst" || tokens[2] != "/Isecond" {
		t.Errorf("resolver flags not spliced after /nologo: %v", tokens)
	}
}

func TestRunAutoIncludeDisabledSkipsResolver(t *testing.T) {
	tool := fakeTool(t, `echo "$@"`)
	o := newOrchestrator(t, WithResolver(stubResolver{flags: "/Inever"}))
	cfg := testConfig(tool)
	cfg.Tool.AutoInclude = false

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Contains(res.Output, "/Inever") {
		t.Errorf("resolver flags present with auto-include off: %q", res.Output)
	}
}

func TestRunBootstrapChainsEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tests drive POSIX shell tools")
	}
	bootstrap := filepath.Join(t.TempDir(), "env.sh")
	if err := os.WriteFile(bootstrap, []byte("PPVIEW_BOOT=ready\nexport PPVIEW_BOOT\n"), 0o644); err != nil {
		t.Fatalf("write bootstrap: %v", err)
	}
	tool := fakeTool(t, `echo "boot=$PPVIEW_BOOT"`)

	o := newOrchestrator(t)
	cfg := testConfig(tool)
	cfg.Tool.Bootstrap = bootstrap

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.Output != "boot=ready" {
		t.Errorf("Output = %q, bootstrap environment did not reach the tool", res.Output)
	}
}

func TestRunMissingBootstrapRunsToolDirectly(t *testing.T) {
	o := newOrchestrator(t)
	cfg := testConfig(fakeTool(t, `echo direct`))
	cfg.Tool.Bootstrap = filepath.Join(t.TempDir(), "missing.sh")

	res, err := o.Run(context.Background(), "int x;", cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success || res.Output != "direct" {
		t.Errorf("unexpected result with missing bootstrap: %+v", res)
	}
}

func TestCloseIsIdempotentAndStopsRuns(t *testing.T) {
	o := New(WithScratchDir(filepath.Join(t.TempDir(), "scratch")))
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := o.Run(context.Background(), "int x;", testConfig("/bin/cl")); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
