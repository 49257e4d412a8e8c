package includes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/ppview/internal/cmdline"
)

func TestStaticIncludeFlags(t *testing.T) {
	tests := []struct {
		name string
		dirs []string
		want []string
	}{
		{"empty", nil, nil},
		{"single", []string{"/opt/inc"}, []string{"/I/opt/inc"}},
		{"multiple", []string{"/opt/inc", "/usr/local/inc"}, []string{"/I/opt/inc", "/I/usr/local/inc"}},
		{"blank entries skipped", []string{"", "  ", "/opt/inc"}, []string{"/I/opt/inc"}},
		{"spaces get quoted", []string{"/opt/my inc"}, []string{"/I/opt/my inc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, err := NewStatic(tt.dirs).IncludeFlags(context.Background(), "", "")
			if err != nil {
				t.Fatalf("IncludeFlags failed: %v", err)
			}
			got := cmdline.Tokenize(flags)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("flag %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCompileCommandsIncludeFlags(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	db := `[
  {"directory": "` + root + `", "file": "other/thing.cpp", "command": "cl /Iother-inc /c other/thing.cpp"},
  {"directory": "` + root + `", "file": "src/main.cpp", "command": "cl /nologo -Iproj-inc /I /abs/inc /external:I/ext/inc /c src/main.cpp"}
]`
	if err := os.WriteFile(filepath.Join(root, "compile_commands.json"), []byte(db), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}

	flags, err := NewCompileCommands().IncludeFlags(context.Background(), "", src)
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}

	tokens := cmdline.Tokenize(flags)
	want := []string{
		"/I" + filepath.Join(root, "proj-inc"),
		"/I/abs/inc",
		"/I/ext/inc",
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range tokens {
		if tokens[i] != want[i] {
			t.Errorf("flag %d: got %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestCompileCommandsArgumentsForm(t *testing.T) {
	root := t.TempDir()
	db := `[{"directory": "` + root + `", "file": "a.cpp", "arguments": ["cl", "/Ifirst", "-I", "second", "/c", "a.cpp"]}]`
	if err := os.WriteFile(filepath.Join(root, "compile_commands.json"), []byte(db), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}

	flags, err := NewCompileCommands().IncludeFlags(context.Background(), "", root)
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	tokens := cmdline.Tokenize(flags)
	if len(tokens) != 2 {
		t.Fatalf("got %v, want 2 flags", tokens)
	}
	if tokens[0] != "/I"+filepath.Join(root, "first") {
		t.Errorf("first flag: got %q", tokens[0])
	}
	if tokens[1] != "/I"+filepath.Join(root, "second") {
		t.Errorf("second flag: got %q", tokens[1])
	}
}

func TestCompileCommandsMissingDatabase(t *testing.T) {
	flags, err := NewCompileCommands().IncludeFlags(context.Background(), "", t.TempDir())
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	if flags != "" {
		t.Errorf("expected empty flags, got %q", flags)
	}
}

func TestClangdIncludeFlags(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "deep", "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg := "CompileFlags:\n  Add:\n    - -Iinclude\n    - -Wall\n    - /I/abs/inc\n"
	if err := os.WriteFile(filepath.Join(root, ".clangd"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write .clangd: %v", err)
	}

	flags, err := NewClangd().IncludeFlags(context.Background(), "", sub)
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	tokens := cmdline.Tokenize(flags)
	want := []string{"/I" + filepath.Join(root, "include"), "/I/abs/inc"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range tokens {
		if tokens[i] != want[i] {
			t.Errorf("flag %d: got %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestClangdNoIncludeFlags(t *testing.T) {
	root := t.TempDir()
	cfg := "CompileFlags:\n  Add:\n    - -Wall\n"
	if err := os.WriteFile(filepath.Join(root, ".clangd"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write .clangd: %v", err)
	}

	flags, err := NewClangd().IncludeFlags(context.Background(), "", root)
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	if flags != "" {
		t.Errorf("expected empty flags, got %q", flags)
	}
}

func TestToolchainIncludeFlags(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "bin", "Hostx64", "x64")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "include"), 0o755); err != nil {
		t.Fatalf("mkdir include: %v", err)
	}
	toolPath := filepath.Join(binDir, "cl.exe")
	if err := os.WriteFile(toolPath, []byte("fake"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}

	flags, err := NewToolchain().IncludeFlags(context.Background(), toolPath, "")
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	want := "/I" + filepath.Join(root, "include")
	if got := cmdline.Tokenize(flags); len(got) != 1 || got[0] != want {
		t.Errorf("got %v, want [%q]", got, want)
	}
}

func TestToolchainNoIncludeDirectory(t *testing.T) {
	toolPath := filepath.Join(t.TempDir(), "bin", "Hostx64", "x64", "cl.exe")

	flags, err := NewToolchain().IncludeFlags(context.Background(), toolPath, "")
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	if flags != "" {
		t.Errorf("expected empty flags for missing layout, got %q", flags)
	}
}

type stubResolver struct {
	name  string
	flags string
	err   error
	calls int
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) IncludeFlags(context.Context, string, string) (string, error) {
	s.calls++
	return s.flags, s.err
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	empty := &stubResolver{name: "empty"}
	failing := &stubResolver{name: "failing", err: errors.New("broken project file")}
	hit := &stubResolver{name: "hit", flags: "/Ifound"}
	after := &stubResolver{name: "after", flags: "/Inever"}

	chain := NewChain(empty, failing, hit, after)
	flags, err := chain.IncludeFlags(context.Background(), "", "")
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	if flags != "/Ifound" {
		t.Errorf("got %q, want /Ifound", flags)
	}
	if after.calls != 0 {
		t.Error("chain kept going past the first non-empty result")
	}
	if empty.calls != 1 || failing.calls != 1 {
		t.Error("chain skipped earlier resolvers")
	}
}

func TestChainAllEmpty(t *testing.T) {
	chain := NewChain(&stubResolver{name: "a"}, &stubResolver{name: "b"})
	flags, err := chain.IncludeFlags(context.Background(), "", "")
	if err != nil {
		t.Fatalf("IncludeFlags failed: %v", err)
	}
	if flags != "" {
		t.Errorf("expected empty flags, got %q", flags)
	}
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain(&stubResolver{name: "a", flags: "/Ix"})
	if _, err := chain.IncludeFlags(ctx, "", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestCollectIncludeFlags(t *testing.T) {
	tokens := []string{"cl", "/nologo", "/Ione", "-Itwo", "-I", "three", "/external:Ifour", "/c", "main.cpp"}
	flags := collectIncludeFlags(tokens)
	want := []string{"/Ione", "/Itwo", "/Ithree", "/Ifour"}
	if len(flags) != len(want) {
		t.Fatalf("got %v, want %v", flags, want)
	}
	for i := range flags {
		if flags[i] != want[i] {
			t.Errorf("flag %d: got %q, want %q", i, flags[i], want[i])
		}
	}
}

func TestCollectIncludeFlagsTrailingSeparated(t *testing.T) {
	if flags := collectIncludeFlags([]string{"/c", "-I"}); len(flags) != 0 {
		t.Errorf("trailing separated flag should yield nothing, got %v", flags)
	}
}
