package includes

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ppview/internal/cmdline"
)

// clangdName is the clangd project configuration filename.
const clangdName = ".clangd"

// clangdConfig mirrors the fragment of the .clangd schema we read.
type clangdConfig struct {
	CompileFlags struct {
		Add []string `yaml:"Add"`
	} `yaml:"CompileFlags"`
}

// Clangd reads include flags from the nearest .clangd file above the
// source directory. Only CompileFlags.Add entries that are include flags
// are used; everything else in the file is clangd's business.
type Clangd struct{}

// NewClangd returns a Clangd resolver.
func NewClangd() *Clangd {
	return &Clangd{}
}

// Name returns the resolver name.
func (c *Clangd) Name() string { return "clangd" }

// IncludeFlags extracts include flags from CompileFlags.Add, resolving
// relative directories against the .clangd file's own directory.
func (c *Clangd) IncludeFlags(ctx context.Context, _, sourceDir string) (string, error) {
	if sourceDir == "" {
		return "", nil
	}
	cfgPath := findUp(sourceDir, clangdName)
	if cfgPath == "" {
		return "", nil
	}
	if ctx != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return "", err
	}

	var cfg clangdConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", err
	}

	flags := collectIncludeFlags(cfg.CompileFlags.Add)
	if len(flags) == 0 {
		return "", nil
	}

	baseDir := filepath.Dir(cfgPath)
	for i, flag := range flags {
		dir := flag[len("/I"):]
		if !filepath.IsAbs(dir) {
			flags[i] = "/I" + filepath.Join(baseDir, dir)
		}
	}

	return cmdline.Join(flags), nil
}
