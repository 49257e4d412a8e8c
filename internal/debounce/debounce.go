// Package debounce collapses bursts of trigger signals into a single
// callback invocation after a quiet period. Rapid edits therefore cost one
// preprocessor run, not one per keystroke.
package debounce

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNilCallback is returned by New when no callback is supplied.
	ErrNilCallback = errors.New("debounce: callback is nil")
	// ErrNonPositiveDelay is returned by New for zero or negative delays.
	ErrNonPositiveDelay = errors.New("debounce: delay must be positive")
)

// Coordinator delays callback execution until its delay elapses without a
// new Trigger. Each Trigger restarts the countdown; at most one invocation
// is pending at any time. All methods are safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	delay    time.Duration
	callback func()
	timer    *time.Timer
	pending  bool
	seq      uint64
	closed   atomic.Bool
}

// New returns a Coordinator that invokes callback once per settled burst of
// triggers. The delay must be positive and the callback non-nil.
func New(delay time.Duration, callback func()) (*Coordinator, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}
	if delay <= 0 {
		return nil, ErrNonPositiveDelay
	}
	return &Coordinator{delay: delay, callback: callback}, nil
}

// Delay returns the configured quiet period.
func (c *Coordinator) Delay() time.Duration {
	return c.delay
}

// Trigger schedules the callback to run after the quiet period, restarting
// the countdown if one is already running. Triggers on a closed Coordinator
// are ignored.
func (c *Coordinator) Trigger() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = true
	c.seq++
	seq := c.seq

	if c.timer != nil {
		c.timer.Stop()
	}
	// The sequence check makes a stale timer that already fired into a
	// no-op: only the countdown started by the latest Trigger may run the
	// callback.
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		if !c.pending || c.seq != seq || c.closed.Load() {
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
		c.invoke()
	})
}

// Cancel drops any pending invocation without running it.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// ExecuteNow cancels any pending countdown and runs the callback
// synchronously on the calling goroutine. It is a no-op on a closed
// Coordinator.
func (c *Coordinator) ExecuteNow() {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	c.pending = false
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.invoke()
}

// IsPending reports whether a countdown is currently armed.
func (c *Coordinator) IsPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Close stops any pending countdown and prevents further invocations.
// Close is idempotent.
func (c *Coordinator) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.Cancel()
	return nil
}

// invoke runs the callback outside the lock. A panicking callback must not
// poison the Coordinator, so it is recovered and discarded here.
func (c *Coordinator) invoke() {
	defer func() {
		_ = recover()
	}()
	c.callback()
}
