package preproc

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ppview/internal/runner"
)

// Fixed result messages. The cancelled text is deliberately stable so the
// caller can render it verbatim.
const (
	cancelledMessage = "operation was cancelled"
	noOutputMessage  = "Preprocessing completed successfully (no output)."
	unknownErrorText = "unknown error"
)

// Result is the shaped outcome of one preprocessor run.
type Result struct {
	// Success is true for a clean zero-exit, uncancelled run.
	Success bool `json:"success"`
	// Output is the noise-stripped stdout, or the no-output marker.
	// Empty on failure.
	Output string `json:"output"`
	// ErrorText is a human-readable failure description. Empty on success.
	ErrorText string `json:"error,omitempty"`
	// ExitCode is the tool's exit code, -1 when it never produced one.
	ExitCode int `json:"exit_code"`
	// Duration measures the run from validation to completion.
	Duration time.Duration `json:"duration"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}

// failure builds a failed Result with the fixed -1 exit code.
func failure(started time.Time, msg string) *Result {
	return &Result{
		ErrorText: msg,
		ExitCode:  -1,
		Duration:  time.Since(started),
		StartedAt: started,
	}
}

// shape converts a process outcome into a Result. Cancelled runs surface
// the fixed cancellation text and no partial output.
func shape(started time.Time, out *runner.Outcome) *Result {
	res := &Result{
		ExitCode:  out.ExitCode,
		Duration:  time.Since(started),
		StartedAt: started,
	}

	switch {
	case out.State == runner.StateCancelled:
		res.ErrorText = cancelledMessage
	case out.Failure != nil:
		// Timeouts and launch refusals carry their own description.
		res.ErrorText = out.Failure.Error()
	case out.ExitCode != 0:
		res.ErrorText = deriveError(out)
	default:
		res.Success = true
		res.Output = ShapeOutput(out.Stdout)
	}

	return res
}

// deriveError produces the failure text for a run the tool itself
// rejected: stderr when it said anything, the exit code otherwise.
func deriveError(out *runner.Outcome) string {
	if msg := strings.TrimSpace(out.Stderr); msg != "" {
		return msg
	}
	if out.ExitCode != 0 {
		return fmt.Sprintf("exit code %d", out.ExitCode)
	}
	return unknownErrorText
}

// ShapeOutput post-processes successful stdout: blank output becomes the
// no-output marker, and banner noise lines are dropped while the remaining
// lines keep their order.
func ShapeOutput(stdout string) string {
	if strings.TrimSpace(stdout) == "" {
		return noOutputMessage
	}

	lines := strings.Split(stdout, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isNoiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isNoiseLine reports whether a line is vendor banner or copyright text
// rather than preprocessor output.
func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return true
	case strings.HasPrefix(trimmed, vendorName):
		return true
	case strings.Contains(line, "Copyright"):
		return true
	case strings.Contains(line, "(R)"), strings.Contains(line, "®"):
		return true
	}
	return false
}
