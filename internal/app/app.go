// Package app wires the ppview pipeline together: file watcher feeding a
// debounce coordinator, a trigger channel feeding preprocessor runs, and a
// presenter rendering the shaped results. The app layer also enforces the
// run-supersession policy: starting a run cancels the previous one, and a
// stale run's result is dropped instead of rendered.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/ppview/internal/config"
	"github.com/dshills/ppview/internal/debounce"
	"github.com/dshills/ppview/internal/includes"
	"github.com/dshills/ppview/internal/logging"
	"github.com/dshills/ppview/internal/preproc"
	"github.com/dshills/ppview/internal/view"
	"github.com/dshills/ppview/internal/watch"
)

var (
	// ErrNilConfig is returned by New when no configuration is supplied.
	ErrNilConfig = errors.New("app: configuration is nil")
	// ErrNoFile is returned by New when no source file is named.
	ErrNoFile = errors.New("app: no source file to watch")
	// ErrNilPresenter is returned by New when no presenter is supplied.
	ErrNilPresenter = errors.New("app: presenter is nil")
)

// Options configures an App.
type Options struct {
	// Config is the validated settings snapshot.
	Config *config.Config
	// File is the source file to watch and preprocess.
	File string
	// Presenter renders run state and results.
	Presenter view.Presenter
	// Logger receives diagnostics. Nil selects the discard logger.
	Logger *logging.Logger
}

// seqResult tags a run result with its supersession sequence number.
type seqResult struct {
	seq int
	res *preproc.Result
}

// App owns the watch → debounce → run → present pipeline for one file.
type App struct {
	cfg    *config.Config
	file   string
	logger *logging.Logger
	orch   *preproc.Orchestrator
	deb    *debounce.Coordinator
	wtr    *watch.Watcher
	pres   view.Presenter

	// triggers carries debounce firings into the event loop, decoupling
	// the coordinator from whichever goroutine its timer runs on.
	triggers chan struct{}
	results  chan seqResult

	mu        sync.Mutex
	runSeq    int
	cancelRun context.CancelFunc

	runs      sync.WaitGroup
	closeOnce sync.Once
}

// New builds the pipeline: orchestrator with the include-resolver chain,
// file watcher, and debounce coordinator. Close releases everything New
// acquired.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, ErrNilConfig
	}
	if opts.File == "" {
		return nil, ErrNoFile
	}
	if opts.Presenter == nil {
		return nil, ErrNilPresenter
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	file, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Null
	}

	a := &App{
		cfg:      opts.Config,
		file:     file,
		logger:   logger.WithComponent("app"),
		pres:     opts.Presenter,
		triggers: make(chan struct{}, 1),
		results:  make(chan seqResult, 4),
	}

	resolver := includes.NewChain(
		includes.NewStatic(opts.Config.Tool.IncludeDirs),
		includes.NewCompileCommands(),
		includes.NewClangd(),
		includes.NewToolchain(),
	)

	a.orch = preproc.New(
		preproc.WithResolver(resolver),
		preproc.WithLogger(logger),
		preproc.WithSourceDir(filepath.Dir(file)),
	)

	a.wtr, err = watch.New(file)
	if err != nil {
		_ = a.orch.Close()
		return nil, fmt.Errorf("app: watch %s: %w", file, err)
	}

	a.deb, err = debounce.New(opts.Config.Run.Debounce(), a.pushTrigger)
	if err != nil {
		_ = a.wtr.Close()
		_ = a.orch.Close()
		return nil, err
	}

	return a, nil
}

// File returns the absolute path of the watched file.
func (a *App) File() string {
	return a.file
}

// Run drives the event loop until ctx is cancelled or the presenter asks
// to quit. It performs one immediate run on entry so the user sees output
// before the first edit.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("watching %s (debounce %s)", a.file, a.deb.Delay())

	a.deb.ExecuteNow()

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-a.wtr.Events():
			if !ok {
				return nil
			}
			a.deb.Trigger()

		case err, ok := <-a.wtr.Errors():
			if ok && err != nil {
				a.logger.Warn("watcher: %v", err)
			}

		case <-a.triggers:
			a.startRun(ctx)

		case sr := <-a.results:
			if a.currentSeq() != sr.seq {
				a.logger.Debug("dropping superseded result (seq %d)", sr.seq)
				continue
			}
			a.pres.ShowResult(sr.res)

		case action := <-a.pres.Actions():
			switch action {
			case view.ActionQuit:
				return nil
			case view.ActionRunNow:
				a.deb.ExecuteNow()
			}
		}
	}
}

// Close cancels any in-flight run and releases the pipeline in reverse
// dependency order. Close is idempotent.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		if a.cancelRun != nil {
			a.cancelRun()
		}
		a.mu.Unlock()

		errs = append(errs, a.deb.Close())
		errs = append(errs, a.wtr.Close())
		a.runs.Wait()
		errs = append(errs, a.orch.Close())
		errs = append(errs, a.pres.Close())
	})
	return errors.Join(errs...)
}

// pushTrigger is the debounce callback: it nudges the event loop without
// blocking the timer goroutine. A trigger already queued is enough.
func (a *App) pushTrigger() {
	select {
	case a.triggers <- struct{}{}:
	default:
	}
}

// startRun supersedes the previous run and launches a new one. The run
// goroutine reads the file, invokes the orchestrator, and reports back
// tagged with its sequence number so stale results can be dropped.
func (a *App) startRun(parent context.Context) {
	a.mu.Lock()
	if a.cancelRun != nil {
		a.cancelRun()
	}
	runCtx, cancel := context.WithCancel(parent)
	a.cancelRun = cancel
	a.runSeq++
	seq := a.runSeq
	a.mu.Unlock()

	a.pres.ShowRunning(a.file)

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		defer cancel()

		res := a.runOnce(runCtx)

		select {
		case a.results <- seqResult{seq: seq, res: res}:
		case <-parent.Done():
		}
	}()
}

// runOnce reads the watched file and preprocesses it, folding read errors
// and caller-mistake errors into a failure result so the loop always has
// something to render.
func (a *App) runOnce(ctx context.Context) *preproc.Result {
	started := time.Now()

	data, err := os.ReadFile(a.file)
	if err != nil {
		a.logger.Error("read %s: %v", a.file, err)
		return &preproc.Result{
			ErrorText: fmt.Sprintf("could not read %s: %v", a.file, err),
			ExitCode:  -1,
			Duration:  time.Since(started),
			StartedAt: started,
		}
	}

	res, err := a.orch.Run(ctx, string(data), a.cfg)
	if err != nil {
		// Run errors here mean an empty file or a torn-down
		// orchestrator; render them rather than crashing the loop.
		return &preproc.Result{
			ErrorText: err.Error(),
			ExitCode:  -1,
			Duration:  time.Since(started),
			StartedAt: started,
		}
	}
	return res
}

func (a *App) currentSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runSeq
}
