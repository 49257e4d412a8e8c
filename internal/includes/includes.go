// Package includes discovers include-directory flags for the preprocessor.
// Each Resolver inspects one project convention (explicit configuration,
// compile_commands.json, .clangd, the toolchain's own layout) and renders
// what it finds as a single pre-formatted flag string the orchestrator
// splices into the command line. Resolvers never fail a run: an error or an
// empty result simply means "nothing found here".
package includes

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/ppview/internal/cmdline"
)

// Resolver produces include flags for a tool and source location.
type Resolver interface {
	// Name identifies the resolver in logs.
	Name() string
	// IncludeFlags returns a flag string such as `/I "C:\proj\include"`,
	// or "" when this resolver has nothing to contribute.
	IncludeFlags(ctx context.Context, toolPath, sourceDir string) (string, error)
}

// Static renders a fixed list of configured include directories.
type Static struct {
	Dirs []string
}

// NewStatic returns a Static resolver over dirs.
func NewStatic(dirs []string) *Static {
	return &Static{Dirs: dirs}
}

// Name returns the resolver name.
func (s *Static) Name() string { return "static" }

// IncludeFlags renders each configured directory as an /I flag. Blank
// entries are skipped; the directories are not required to exist, since
// configuration may describe a tree that appears later.
func (s *Static) IncludeFlags(_ context.Context, _, _ string) (string, error) {
	flags := make([]string, 0, len(s.Dirs))
	for _, dir := range s.Dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		flags = append(flags, "/I"+dir)
	}
	return cmdline.Join(flags), nil
}

// Toolchain derives the compiler's own include directory from the tool
// path. MSVC installs lay the driver out as
// <root>/bin/Host<arch>/<arch>/cl.exe with the headers at <root>/include,
// so three parent hops from the binary's directory land on the root.
type Toolchain struct{}

// NewToolchain returns a Toolchain resolver.
func NewToolchain() *Toolchain {
	return &Toolchain{}
}

// Name returns the resolver name.
func (t *Toolchain) Name() string { return "toolchain" }

// IncludeFlags returns the toolchain include directory as an /I flag when
// the expected layout is present on disk.
func (t *Toolchain) IncludeFlags(_ context.Context, toolPath, _ string) (string, error) {
	if toolPath == "" {
		return "", nil
	}
	binDir := filepath.Dir(toolPath) // .../bin/Hostx64/x64
	root := filepath.Dir(filepath.Dir(filepath.Dir(binDir)))
	include := filepath.Join(root, "include")

	fi, err := os.Stat(include)
	if err != nil || !fi.IsDir() {
		return "", nil
	}
	return cmdline.Join([]string{"/I" + include}), nil
}

// Chain tries resolvers in order and returns the first non-empty flag
// string. Resolver errors are skipped, not propagated: a broken project
// file must not block the resolvers behind it.
type Chain struct {
	resolvers []Resolver
}

// NewChain returns a Chain over resolvers in priority order.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Name returns the resolver name.
func (c *Chain) Name() string { return "chain" }

// IncludeFlags returns the first non-empty result in chain order.
func (c *Chain) IncludeFlags(ctx context.Context, toolPath, sourceDir string) (string, error) {
	for _, r := range c.resolvers {
		if ctx != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		flags, err := r.IncludeFlags(ctx, toolPath, sourceDir)
		if err != nil {
			continue
		}
		if strings.TrimSpace(flags) != "" {
			return flags, nil
		}
	}
	return "", nil
}

// findUp walks from dir toward the filesystem root looking for name,
// returning the first match or "".
func findUp(dir, name string) string {
	dir = filepath.Clean(dir)
	for {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isIncludeFlag reports whether tok is a recognized include flag and
// returns the attached directory if the flag carries one inline. A true
// result with an empty dir means the directory is the next token.
func isIncludeFlag(tok string) (dir string, ok bool) {
	for _, prefix := range []string{"/external:I", "-external:I", "/I", "-I"} {
		if strings.HasPrefix(tok, prefix) {
			return tok[len(prefix):], true
		}
	}
	return "", false
}

// collectIncludeFlags extracts include flags (and their directories) from a
// tokenized compiler command line, normalizing them to inline /I form.
func collectIncludeFlags(tokens []string) []string {
	var flags []string
	for i := 0; i < len(tokens); i++ {
		dir, ok := isIncludeFlag(tokens[i])
		if !ok {
			continue
		}
		if dir == "" {
			if i+1 >= len(tokens) {
				break
			}
			i++
			dir = tokens[i]
		}
		if dir != "" {
			flags = append(flags, "/I"+dir)
		}
	}
	return flags
}
