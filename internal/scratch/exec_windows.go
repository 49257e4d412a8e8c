//go:build windows

package scratch

import (
	"os"
	"path/filepath"
	"strings"
)

// looksExecutable requires a conventional executable extension; Windows has
// no execute bit to consult.
func looksExecutable(path string, _ os.FileInfo) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".bat", ".cmd", ".com":
		return true
	default:
		return false
	}
}
