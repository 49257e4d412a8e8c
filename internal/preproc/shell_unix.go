//go:build !windows

package preproc

import "github.com/dshills/ppview/internal/cmdline"

// shellChain wraps the tool invocation behind a bootstrap script in one
// shell command, so environment variables the script exports are visible
// to the tool.
func shellChain(script, tool string, args []string) (string, []string) {
	line := ". " + cmdline.QuoteIfNeeded(script) + " && " + cmdline.QuoteIfNeeded(tool)
	if len(args) > 0 {
		line += " " + cmdline.Join(args)
	}
	return "/bin/sh", []string{"-c", line}
}
