package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyExecutable is returned before launch when no executable path
	// is supplied.
	ErrEmptyExecutable = errors.New("runner: executable path is empty")
	// ErrExecutableNotFound is returned before launch when the executable
	// path names no file on disk.
	ErrExecutableNotFound = errors.New("runner: executable not found")
	// ErrRunnerClosed is returned by Execute after Close.
	ErrRunnerClosed = errors.New("runner: runner is closed")
	// ErrTimedOut marks outcome failures caused by the invocation timeout.
	ErrTimedOut = errors.New("timed out")
)

const (
	// DefaultTimeout applies when Options.Timeout is unset.
	DefaultTimeout = 30 * time.Second
	// killGracePeriod is how long a process gets between the graceful stop
	// request and the forced kill.
	killGracePeriod = time.Second
)

// Options describes a single tool invocation.
type Options struct {
	// Executable is the path of the program to run. It must name an
	// existing file; PATH lookup is deliberately not performed.
	Executable string
	// Args are passed verbatim, one argument per element.
	Args []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// Timeout bounds the run. Zero or negative selects DefaultTimeout.
	Timeout time.Duration
}

// invocation is one registered process run.
type invocation struct {
	id     string
	cmd    *exec.Cmd
	state  atomic.Int32
	stdout capture
	stderr capture
}

func (inv *invocation) currentState() State {
	return State(inv.state.Load())
}

// transition moves the state machine forward only from the expected state,
// so the first of exit, timeout, cancel, and KillAll wins and later
// attempts are no-ops.
func (inv *invocation) transition(from, to State) bool {
	return inv.state.CompareAndSwap(int32(from), int32(to))
}

// Runner executes external tools one invocation at a time per call,
// tracking everything in flight so it can be stopped wholesale. All methods
// are safe for concurrent use.
type Runner struct {
	mu       sync.Mutex
	inflight map[string]*invocation
	closed   atomic.Bool
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{inflight: make(map[string]*invocation)}
}

// Execute runs one tool invocation to completion, capturing stdout and
// stderr separately while racing process exit against the timeout and ctx.
//
// Argument problems are returned as errors before any process exists:
// ErrEmptyExecutable, ErrExecutableNotFound, ErrRunnerClosed. Everything
// that happens after launch — non-zero exits, timeouts, cancellation,
// launch refusals — is encoded in the Outcome instead.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Outcome, error) {
	if r.closed.Load() {
		return nil, ErrRunnerClosed
	}
	exe := strings.TrimSpace(opts.Executable)
	if exe == "" {
		return nil, ErrEmptyExecutable
	}
	if _, err := os.Stat(exe); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, exe)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	inv := &invocation{id: uuid.NewString()}
	cmd := exec.Command(exe, opts.Args...)
	cmd.Dir = opts.Dir
	setProcGroup(cmd)
	inv.cmd = cmd

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("runner: stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		inv.state.Store(int32(StateFailedToStart))
		return &Outcome{
			ExitCode: -1,
			Duration: time.Since(start),
			Failure:  fmt.Errorf("failed to start: %w", err),
			State:    StateFailedToStart,
		}, nil
	}
	inv.state.Store(int32(StateRunning))
	r.register(inv)
	defer r.unregister(inv.id)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		inv.stdout.consume(stdoutPipe)
	}()
	go func() {
		defer readers.Done()
		inv.stderr.consume(stderrPipe)
	}()

	// Wait must not run until both pipes hit EOF, or it would close them
	// under the readers.
	done := make(chan error, 1)
	go func() {
		readers.Wait()
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
		inv.transition(StateRunning, StateCompleted)
	case <-ctx.Done():
		inv.transition(StateRunning, StateCancelled)
		r.stop(cmd, done)
	case <-timer.C:
		inv.transition(StateRunning, StateTimedOut)
		r.stop(cmd, done)
	}

	out := &Outcome{
		Stdout:   inv.stdout.String(),
		Stderr:   inv.stderr.String(),
		Duration: time.Since(start),
		State:    inv.currentState(),
	}

	switch out.State {
	case StateCompleted:
		out.ExitCode = exitCode(waitErr)
		if waitErr != nil && !isExitError(waitErr) {
			out.Failure = fmt.Errorf("runner: wait: %w", waitErr)
		}
	case StateTimedOut:
		out.ExitCode = -1
		out.Cancelled = true
		out.Failure = fmt.Errorf("%w after %dms", ErrTimedOut, timeout.Milliseconds())
	case StateCancelled:
		// External cancellation or KillAll; no out-of-band failure.
		out.ExitCode = -1
		out.Cancelled = true
	}

	return out, nil
}

// ExecuteSimple runs executable with args under the default timeout and
// returns its stdout. Unlike Execute it folds outcome problems back into
// the returned error: out-of-band failures, cancellation, and non-zero
// exits all fail the call.
func (r *Runner) ExecuteSimple(ctx context.Context, executable string, args ...string) (string, error) {
	out, err := r.Execute(ctx, Options{Executable: executable, Args: args})
	if err != nil {
		return "", err
	}
	if out.Failure != nil {
		return "", out.Failure
	}
	if out.Cancelled {
		if ctx != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", context.Canceled
	}
	if out.ExitCode != 0 {
		name := filepath.Base(executable)
		if msg := strings.TrimSpace(out.Stderr); msg != "" {
			return "", fmt.Errorf("runner: %s exited with code %d: %s", name, out.ExitCode, msg)
		}
		return "", fmt.Errorf("runner: %s exited with code %d", name, out.ExitCode)
	}
	return out.Stdout, nil
}

// InFlight reports how many invocations are currently registered.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// KillAll force-stops every registered invocation. The corresponding
// Execute calls observe cancelled outcomes; invocations that finish while
// KillAll runs are left alone.
func (r *Runner) KillAll() {
	r.mu.Lock()
	invs := make([]*invocation, 0, len(r.inflight))
	for _, inv := range r.inflight {
		invs = append(invs, inv)
	}
	r.mu.Unlock()

	for _, inv := range invs {
		if inv.transition(StateRunning, StateCancelled) {
			killHard(inv.cmd)
		}
	}
}

// Close kills everything in flight and rejects further Execute calls.
// Close is idempotent.
func (r *Runner) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.KillAll()
	return nil
}

func (r *Runner) register(inv *invocation) {
	r.mu.Lock()
	r.inflight[inv.id] = inv
	r.mu.Unlock()
}

func (r *Runner) unregister(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// stop requests a graceful exit, waits out the grace period, then kills.
// done is always drained so the child is reaped before stop returns.
func (r *Runner) stop(cmd *exec.Cmd, done <-chan error) {
	stopGracefully(cmd)
	select {
	case <-done:
	case <-time.After(killGracePeriod):
		killHard(cmd)
		<-done
	}
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}
