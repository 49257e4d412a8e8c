package preproc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/ppview/internal/runner"
	"github.com/dshills/ppview/internal/scratch"
)

const (
	// vendorName marks banner lines and identifies the tool in probes.
	vendorName = "Microsoft"
	// productMarker appears in the tool's version banner alongside the
	// vendor name.
	productMarker = "C/C++"
	// toolName is the expected executable base name.
	toolName = "cl"
)

// ErrVersionNotFound is returned by ToolVersion when the tool ran but
// printed no recognizable version banner.
var ErrVersionNotFound = errors.New("preproc: tool did not report a recognizable version")

// ValidateToolPath checks that path names a usable preprocessor binary: an
// absolute, clean path to an existing executable whose base name is the
// expected tool name (case-insensitive, platform extension optional).
func ValidateToolPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("preproc: tool path is empty")
	}
	if !scratch.ValidExecutablePath(path) {
		return fmt.Errorf("preproc: %q is not an absolute path to an existing executable", path)
	}
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".exe")
	if base != toolName {
		return fmt.Errorf("preproc: expected a %s executable, got %q", toolName, filepath.Base(path))
	}
	return nil
}

// DefaultArguments returns the flags used when the user configures none:
// preprocess to stdout without line markers, keeping comments.
func DefaultArguments() []string {
	return []string{"/EP", "/C"}
}

// Recommendation pairs a tool flag with its user-facing description.
type Recommendation struct {
	Flag        string
	Description string
}

// RecommendedArguments returns the fixed flag reference shown by the CLI.
// The order is presentation order.
func RecommendedArguments() []Recommendation {
	return []Recommendation{
		{"/EP", "Preprocess to stdout without #line directives"},
		{"/E", "Preprocess to stdout with #line directives"},
		{"/P", "Preprocess to a file instead of stdout"},
		{"/C", "Preserve comments during preprocessing"},
		{"/D<name>", "Define a preprocessor macro"},
		{"/U<name>", "Remove a predefined macro"},
		{"/u", "Remove all predefined macros"},
		{"/I<dir>", "Add a directory to the include search path"},
		{"/X", "Ignore standard include directories"},
		{"/FI<file>", "Force inclusion of a file before the source"},
		{"/Zc:preprocessor", "Use the standards-conforming preprocessor"},
	}
}

// TestTool reports whether path responds like the expected tool: its help
// output mentions the vendor on either stream within a short timeout.
func (o *Orchestrator) TestTool(ctx context.Context, path string) bool {
	if ValidateToolPath(path) != nil {
		return false
	}
	out, err := o.runner.Execute(ctx, runner.Options{
		Executable: path,
		Args:       []string{"/?"},
		Timeout:    probeTimeout,
	})
	if err != nil {
		return false
	}
	return strings.Contains(out.Stdout, vendorName) || strings.Contains(out.Stderr, vendorName)
}

// ToolVersion runs the tool with no arguments — this tool family banners
// its identity on stderr when given no input — and returns the first line
// naming both the vendor and the product.
func (o *Orchestrator) ToolVersion(ctx context.Context, path string) (string, error) {
	if err := ValidateToolPath(path); err != nil {
		return "", err
	}
	out, err := o.runner.Execute(ctx, runner.Options{
		Executable: path,
		Timeout:    probeTimeout,
	})
	if err != nil {
		return "", err
	}

	// stderr carries the banner; stdout is checked as a fallback.
	for _, stream := range []string{out.Stderr, out.Stdout} {
		for _, line := range strings.Split(stream, "\n") {
			if strings.Contains(line, vendorName) && strings.Contains(line, productMarker) {
				return strings.TrimSpace(line), nil
			}
		}
	}
	return "", ErrVersionNotFound
}
