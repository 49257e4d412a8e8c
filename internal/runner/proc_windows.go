//go:build windows

package runner

import (
	"os"
	"os/exec"
)

// setProcGroup is a no-op on Windows; process-tree termination is handled
// by killHard.
func setProcGroup(_ *exec.Cmd) {}

// stopGracefully is best effort on Windows: os.Interrupt delivery to
// arbitrary processes is not implemented, so the error is swallowed and the
// grace period simply ends in killHard.
func stopGracefully(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
}

// killHard terminates the process.
func killHard(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
