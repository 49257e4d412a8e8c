//go:build !windows

package scratch

import "os"

// looksExecutable checks the Unix execute bits; there is no meaningful
// extension convention to enforce here.
func looksExecutable(_ string, fi os.FileInfo) bool {
	return fi.Mode().Perm()&0o111 != 0
}
