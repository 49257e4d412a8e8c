// Package view renders preprocessor results. Two presenters exist: Plain
// streams separator-delimited text to a writer, Live paints a full-screen
// terminal view with scrollback. Both consume the same shaped Result; no
// syntax coloring is applied.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dshills/ppview/internal/preproc"
)

// Action is a user request emitted by an interactive presenter.
type Action int

const (
	// ActionQuit asks the application to exit.
	ActionQuit Action = iota
	// ActionRunNow asks for an immediate run, bypassing the debounce
	// delay.
	ActionRunNow
)

// Presenter renders run state and results to the user.
type Presenter interface {
	// ShowRunning indicates a run is in flight for file.
	ShowRunning(file string)
	// ShowResult renders a completed run.
	ShowResult(res *preproc.Result)
	// Actions returns user requests, or nil for non-interactive
	// presenters.
	Actions() <-chan Action
	// Close releases the presenter. Idempotent.
	Close() error
}

// separatorWidth sizes the Plain presenter's divider lines.
const separatorWidth = 72

// Plain writes results as plain text blocks to a writer. It never emits
// actions; the caller decides when to stop.
type Plain struct {
	mu       sync.Mutex
	w        io.Writer
	maxLines int
}

// NewPlain returns a Plain presenter writing to w, truncating output
// bodies at maxLines (0 or less means no limit).
func NewPlain(w io.Writer, maxLines int) *Plain {
	return &Plain{w: w, maxLines: maxLines}
}

// ShowRunning prints a one-line run notice.
func (p *Plain) ShowRunning(file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "-- running %s\n", file)
}

// ShowResult prints a separator, a status line, and the result body.
func (p *Plain) ShowResult(res *preproc.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, strings.Repeat("=", separatorWidth))
	fmt.Fprintf(p.w, "%s  %s\n", res.StartedAt.Format(time.TimeOnly), StatusLine(res))

	body := res.Output
	if !res.Success {
		body = res.ErrorText
	}
	for _, line := range truncateLines(body, p.maxLines) {
		fmt.Fprintln(p.w, line)
	}
}

// Actions returns nil: Plain is not interactive.
func (p *Plain) Actions() <-chan Action {
	return nil
}

// Close is a no-op; the writer belongs to the caller.
func (p *Plain) Close() error {
	return nil
}

// StatusLine summarizes a result in one line for headers and logs.
func StatusLine(res *preproc.Result) string {
	if res.Success {
		return fmt.Sprintf("ok in %s", res.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("failed (exit %d) in %s", res.ExitCode, res.Duration.Round(time.Millisecond))
}

// truncateLines splits body into lines and caps them at maxLines, noting
// how many were dropped.
func truncateLines(body string, maxLines int) []string {
	lines := strings.Split(body, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}
	dropped := len(lines) - maxLines
	out := make([]string, maxLines, maxLines+1)
	copy(out, lines[:maxLines])
	return append(out, fmt.Sprintf("... (%d more lines)", dropped))
}
