// Package scratch manages the temporary source files handed to the
// preprocessor. Files live in a dedicated scratch directory, are tracked in
// a live set so only files created here can be deleted here, and are
// restricted to a small extension allow-list.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrEmptyContent is returned when a source file would be created with
	// blank content.
	ErrEmptyContent = errors.New("scratch: content is empty")
	// ErrExtensionNotAllowed is returned for extensions outside the
	// allow-list.
	ErrExtensionNotAllowed = errors.New("scratch: extension not allowed")
	// ErrStoreClosed is returned when creating files through a closed store.
	ErrStoreClosed = errors.New("scratch: store is closed")
)

// allowedExtensions is the set of file extensions the store will write.
// Everything else is rejected before touching the filesystem.
var allowedExtensions = map[string]struct{}{
	".cpp": {}, ".c": {}, ".cc": {}, ".cxx": {},
	".h": {}, ".hpp": {}, ".hxx": {},
	".bat": {}, ".tmp": {},
}

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// DirInfo is a point-in-time snapshot of the scratch directory.
type DirInfo struct {
	Path       string
	TotalBytes int64
	FileCount  int
}

// Store creates and tracks temporary source files under a single scratch
// directory. The zero value is not usable; construct with NewStore.
type Store struct {
	mu     sync.Mutex
	dir    string
	live   map[string]struct{}
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithBaseDir overrides the scratch directory. Used by tests and by callers
// that need per-instance isolation.
func WithBaseDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// NewStore returns a Store rooted at the default scratch directory under
// the system temp directory. The directory itself is created lazily on the
// first write.
func NewStore(opts ...Option) *Store {
	s := &Store{
		dir:  filepath.Join(os.TempDir(), "ppview-scratch"),
		live: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the scratch directory path. The directory may not exist yet.
func (s *Store) Dir() string {
	return s.dir
}

// CreateSourceFile writes content to a fresh file in the scratch directory
// and returns its absolute path. The extension must be on the allow-list
// (case-insensitive, leading dot optional). NUL bytes and non-whitespace
// control characters are stripped from the content before writing. The file
// is tracked in the live set until deleted.
func (s *Store) CreateSourceFile(content, ext string) (string, error) {
	if s.closed.Load() {
		return "", ErrStoreClosed
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	ext = normalizeExt(ext)
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return "", fmt.Errorf("scratch: create directory: %w", err)
	}

	name := fmt.Sprintf("src-%d-%s%s", time.Now().UnixNano(), shortID(), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, []byte(stripControl(content)), filePerm); err != nil {
		return "", fmt.Errorf("scratch: write %s: %w", name, err)
	}

	s.live[path] = struct{}{}
	return path, nil
}

// Delete removes a file previously created by this store. It reports false
// for empty paths, paths the store does not track, and removal failures; it
// never returns an error. Files that fail to delete stay tracked so a later
// CleanupAll can retry.
func (s *Store) Delete(path string) bool {
	if path == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(path)
}

func (s *Store) deleteLocked(path string) bool {
	if _, ok := s.live[path]; !ok {
		return false
	}
	// Read-only files block os.Remove on some platforms; make writable
	// first and ignore the result.
	_ = os.Chmod(path, filePerm)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false
	}
	delete(s.live, path)
	return true
}

// CleanupAll deletes every tracked file, best effort.
func (s *Store) CleanupAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path := range s.live {
		s.deleteLocked(path)
	}
}

// DirectoryInfo reports the scratch directory's current size and file
// count. A missing or unreadable directory yields zero counts rather than
// an error.
func (s *Store) DirectoryInfo() DirInfo {
	info := DirInfo{Path: s.dir}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return info
	}
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		info.FileCount++
		info.TotalBytes += fi.Size()
	}
	return info
}

// Close deletes all tracked files and removes the scratch directory if it
// is empty. Close is idempotent and safe to call concurrently.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.CleanupAll()
	// Only remove the directory when nothing else lives there; concurrent
	// instances may share it.
	_ = os.Remove(s.dir)
	return nil
}

// ValidExecutablePath reports whether path is safe to hand to the process
// runner as a tool location: an absolute, already-clean path to an existing
// regular file with the platform's executable shape, free of parent-dir
// segments and home-dir shortcuts.
func ValidExecutablePath(path string) bool {
	if path == "" {
		return false
	}
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return false
	}
	if strings.Contains(path, "~") {
		return false
	}
	for _, seg := range strings.Split(path, string(os.PathSeparator)) {
		if seg == ".." {
			return false
		}
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return looksExecutable(path, fi)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// stripControl drops NUL and non-whitespace control characters, keeping
// tabs and line endings intact.
func stripControl(content string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, content)
}

func shortID() string {
	id := uuid.NewString()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
