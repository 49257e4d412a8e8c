package includes

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/ppview/internal/cmdline"
)

// compileCommandsName is the compilation database filename produced by
// CMake and most build generators.
const compileCommandsName = "compile_commands.json"

// CompileCommands reads include flags out of the nearest
// compile_commands.json above the source directory. The database is an
// array of {directory, file, command|arguments} entries; the entry whose
// file lives under the source directory wins, falling back to the first
// entry when none matches (a temp copy of the source never appears in the
// database by name).
type CompileCommands struct{}

// NewCompileCommands returns a CompileCommands resolver.
func NewCompileCommands() *CompileCommands {
	return &CompileCommands{}
}

// Name returns the resolver name.
func (c *CompileCommands) Name() string { return "compile-commands" }

// IncludeFlags extracts /I, -I, and /external:I flags from the matched
// database entry, resolving relative directories against the entry's own
// directory field.
func (c *CompileCommands) IncludeFlags(ctx context.Context, _, sourceDir string) (string, error) {
	if sourceDir == "" {
		return "", nil
	}
	dbPath := findUp(sourceDir, compileCommandsName)
	if dbPath == "" {
		return "", nil
	}
	if ctx != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}

	data, err := os.ReadFile(dbPath)
	if err != nil {
		return "", err
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return "", nil
	}

	entry := matchEntry(parsed, sourceDir)
	if !entry.Exists() {
		return "", nil
	}

	tokens := entryTokens(entry)
	flags := collectIncludeFlags(tokens)
	if len(flags) == 0 {
		return "", nil
	}

	// Relative include directories are relative to the entry's build
	// directory, not to ppview's working directory.
	baseDir := entry.Get("directory").String()
	for i, flag := range flags {
		dir := strings.TrimPrefix(flag, "/I")
		if baseDir != "" && !filepath.IsAbs(dir) {
			flags[i] = "/I" + filepath.Join(baseDir, dir)
		}
	}

	return cmdline.Join(flags), nil
}

// matchEntry picks the database entry for sourceDir: the first whose file
// path sits inside sourceDir, else the first entry overall.
func matchEntry(parsed gjson.Result, sourceDir string) gjson.Result {
	sourceDir = filepath.Clean(sourceDir)
	var first, matched gjson.Result

	parsed.ForEach(func(_, entry gjson.Result) bool {
		if !first.Exists() {
			first = entry
		}
		file := entry.Get("file").String()
		if file == "" {
			return true
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(entry.Get("directory").String(), file)
		}
		if filepath.Clean(filepath.Dir(file)) == sourceDir {
			matched = entry
			return false
		}
		return true
	})

	if matched.Exists() {
		return matched
	}
	return first
}

// entryTokens returns the entry's compiler invocation as a token list,
// from the "arguments" array when present or by tokenizing "command".
func entryTokens(entry gjson.Result) []string {
	if args := entry.Get("arguments"); args.IsArray() {
		var tokens []string
		args.ForEach(func(_, v gjson.Result) bool {
			tokens = append(tokens, v.String())
			return true
		})
		return tokens
	}
	return cmdline.Tokenize(entry.Get("command").String())
}
