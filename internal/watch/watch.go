// Package watch delivers edit signals for a single file. It watches the
// file's parent directory rather than the file itself, because most
// editors save by writing a temporary file and renaming it over the
// original, which silently drops a watch placed on the file's inode.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrPathNotExist is returned by New when the file is missing.
	ErrPathNotExist = errors.New("watch: path does not exist")
	// ErrNotRegularFile is returned by New for directories and other
	// non-file paths.
	ErrNotRegularFile = errors.New("watch: path is not a regular file")
)

// defaultBufferSize is the event channel capacity. Bursts beyond it are
// dropped; the debounce layer only cares that at least one signal lands.
const defaultBufferSize = 64

// Event is one observed edit of the watched file.
type Event struct {
	Path      string
	Timestamp time.Time
}

// Watcher reports edits to one file. Construct with New; Close is
// idempotent.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	events  chan Event
	errs    chan error

	mu       sync.Mutex
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithBufferSize overrides the event channel capacity.
func WithBufferSize(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.events = make(chan Event, n)
			w.errs = make(chan error, n)
		}
	}
}

// New starts watching path's parent directory for changes to path. The
// file must exist when New is called.
func New(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, ErrNotRegularFile
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:    absPath,
		watcher: fsw,
		events:  make(chan Event, defaultBufferSize),
		errs:    make(chan error, defaultBufferSize),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Events returns the edit signal channel. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the watcher error channel. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher and closes both channels. Close is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errs)

	return w.watcher.Close()
}

// processLoop filters directory events down to the watched file.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// handleFSEvent forwards events that touch the watched file with a
// content-affecting operation. Create and Rename cover atomic saves,
// where the editor renames a fresh file over ours.
func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	if filepath.Clean(fsEvent.Name) != w.path {
		return
	}
	if !fsEvent.Op.Has(fsnotify.Write) &&
		!fsEvent.Op.Has(fsnotify.Create) &&
		!fsEvent.Op.Has(fsnotify.Rename) {
		return
	}

	w.sendEvent(Event{Path: w.path, Timestamp: time.Now()})
}

// sendEvent delivers an edit signal, dropping it if the channel is full.
func (w *Watcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	default:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
