// Package runner executes external tools with bounded lifetimes and
// complete output capture.
//
// The runner package is the process layer under the preprocessing
// pipeline: every compiler invocation, probe, and version query goes
// through a Runner.
//
// # Features
//
//   - Fail-fast validation of the executable path before launch
//   - Independent stdout/stderr capture, line by line, never interleaved
//   - Exit vs timeout vs cancellation raced on a single select
//   - Graceful stop with a one-second grace period before a hard kill
//   - Registry of in-flight invocations with wholesale KillAll
//
// # Execute
//
// Execute returns an error only for argument problems; everything after
// launch is reported in the Outcome:
//
//	r := runner.New()
//	defer r.Close()
//
//	out, err := r.Execute(ctx, runner.Options{
//	    Executable: "/opt/msvc/cl.exe",
//	    Args:       []string{"/nologo", "/EP", "main.cpp"},
//	    Timeout:    30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err) // bad arguments, not a bad run
//	}
//	if !out.Success() {
//	    fmt.Println(out.ExitCode, out.Stderr)
//	}
//
// # Lifecycle
//
// Each invocation moves through a one-way state machine:
//
//	NotStarted -> Running -> Completed
//	                      -> TimedOut
//	                      -> Cancelled
//	           -> FailedToStart
//
// The first of process exit, timeout expiry, context cancellation, and
// KillAll decides the terminal state; later events are no-ops.
//
// # Thread Safety
//
// Runner is safe for concurrent use; any number of Execute calls may run
// in parallel.
package runner
