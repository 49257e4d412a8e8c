package runner

import "time"

// State identifies where an invocation is in its lifecycle. Transitions are
// one-way: NotStarted -> Running -> one terminal state.
type State int32

const (
	// StateNotStarted means Execute has not launched the process yet.
	StateNotStarted State = iota
	// StateRunning means the process is alive.
	StateRunning
	// StateCompleted means the process exited on its own.
	StateCompleted
	// StateTimedOut means the configured timeout expired first.
	StateTimedOut
	// StateCancelled means the caller's context was cancelled or KillAll
	// reaped the invocation.
	StateCancelled
	// StateFailedToStart means the process never launched.
	StateFailedToStart
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed-out"
	case StateCancelled:
		return "cancelled"
	case StateFailedToStart:
		return "failed-to-start"
	default:
		return "unknown"
	}
}

// terminal reports whether the state ends an invocation.
func (s State) terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateCancelled, StateFailedToStart:
		return true
	default:
		return false
	}
}

// Outcome is the complete result of one tool invocation. Process-level
// problems (non-zero exits, timeouts, cancellation, launch failures) are
// reported here rather than as Execute errors.
type Outcome struct {
	// Stdout and Stderr hold the full captured streams, newline-joined.
	// They are captured independently and never interleaved.
	Stdout string
	Stderr string
	// ExitCode is the process exit code, or -1 when the process was
	// stopped early or never produced one.
	ExitCode int
	// Duration measures launch to reap.
	Duration time.Duration
	// Cancelled is true when a timeout, context cancellation, or KillAll
	// stopped the process.
	Cancelled bool
	// Failure carries the reason an invocation went wrong out-of-band:
	// a timeout description or a launch error. Nil for clean runs and for
	// plain non-zero exits.
	Failure error
	// State is the invocation's terminal state.
	State State
}

// Success reports a clean run: a zero exit with no cancellation and no
// out-of-band failure.
func (o *Outcome) Success() bool {
	return o != nil && o.ExitCode == 0 && !o.Cancelled && o.Failure == nil
}

// Combined returns stdout followed by stderr as two blocks. The streams are
// captured separately, so ordering between them is by stream, never by
// arrival time.
func (o *Outcome) Combined() string {
	switch {
	case o.Stdout == "":
		return o.Stderr
	case o.Stderr == "":
		return o.Stdout
	default:
		return o.Stdout + "\n" + o.Stderr
	}
}
