//go:build windows

package preproc

import (
	"os"

	"github.com/dshills/ppview/internal/cmdline"
)

// shellChain wraps the tool invocation behind a bootstrap script in one
// cmd.exe command, so environment variables the script sets (vcvars-style)
// are visible to the tool.
func shellChain(script, tool string, args []string) (string, []string) {
	line := "call " + cmdline.QuoteIfNeeded(script) + " && " + cmdline.QuoteIfNeeded(tool)
	if len(args) > 0 {
		line += " " + cmdline.Join(args)
	}
	shell := os.Getenv("ComSpec")
	if shell == "" {
		shell = `C:\Windows\System32\cmd.exe`
	}
	return shell, []string{"/S", "/C", line}
}
