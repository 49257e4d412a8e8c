package view

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/ppview/internal/preproc"
)

// Live is a full-screen terminal presenter: a reverse-video status header
// over a scrollable output body. Keys: q or Ctrl+C quit, r forces a run,
// arrows and PgUp/PgDn/Home/End scroll.
type Live struct {
	mu       sync.Mutex
	screen   tcell.Screen
	file     string
	status   string
	lines    []string
	offset   int
	maxLines int
	actions  chan Action

	closeOnce sync.Once
	loopDone  chan struct{}
}

// NewLive creates a Live presenter for file on a fresh terminal screen.
func NewLive(file string, maxLines int) (*Live, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return newLive(screen, file, maxLines)
}

// newLive finishes construction over any tcell screen, real or simulated.
func newLive(screen tcell.Screen, file string, maxLines int) (*Live, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}

	l := &Live{
		screen:   screen,
		file:     file,
		status:   "waiting for changes",
		maxLines: maxLines,
		actions:  make(chan Action, 8),
		loopDone: make(chan struct{}),
	}

	l.draw()
	go l.eventLoop()

	return l, nil
}

// ShowRunning updates the header to the in-flight state.
func (l *Live) ShowRunning(string) {
	l.mu.Lock()
	l.status = "running..."
	l.mu.Unlock()
	l.draw()
}

// ShowResult replaces the body with the run's output and resets scroll.
func (l *Live) ShowResult(res *preproc.Result) {
	body := res.Output
	if !res.Success {
		body = res.ErrorText
	}

	l.mu.Lock()
	l.status = StatusLine(res)
	l.lines = truncateLines(body, l.maxLines)
	l.offset = 0
	l.mu.Unlock()
	l.draw()
}

// Actions returns the user request channel.
func (l *Live) Actions() <-chan Action {
	return l.actions
}

// Close tears the screen down. Idempotent; the event loop exits when the
// finalized screen stops delivering events.
func (l *Live) Close() error {
	l.closeOnce.Do(func() {
		l.screen.Fini()
		<-l.loopDone
	})
	return nil
}

// eventLoop translates key events into actions and scrolling. PollEvent
// returns nil once the screen is finalized, ending the loop.
func (l *Live) eventLoop() {
	defer close(l.loopDone)

	for {
		ev := l.screen.PollEvent()
		if ev == nil {
			return
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			l.screen.Sync()
			l.draw()

		case *tcell.EventKey:
			if !l.handleKey(ev) {
				return
			}
		}
	}
}

// handleKey processes one key event; a false return ends the loop.
func (l *Live) handleKey(ev *tcell.EventKey) bool {
	_, height := l.screen.Size()
	page := height - 1
	if page < 1 {
		page = 1
	}

	switch {
	case ev.Key() == tcell.KeyCtrlC,
		ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
		l.sendAction(ActionQuit)
		return false

	case ev.Key() == tcell.KeyRune && (ev.Rune() == 'r' || ev.Rune() == 'R'):
		l.sendAction(ActionRunNow)

	case ev.Key() == tcell.KeyUp:
		l.scrollBy(-1)
	case ev.Key() == tcell.KeyDown:
		l.scrollBy(1)
	case ev.Key() == tcell.KeyPgUp:
		l.scrollBy(-page)
	case ev.Key() == tcell.KeyPgDn:
		l.scrollBy(page)
	case ev.Key() == tcell.KeyHome:
		l.scrollTo(0)
	case ev.Key() == tcell.KeyEnd:
		l.scrollTo(len(l.snapshotLines()))
	}
	return true
}

func (l *Live) sendAction(a Action) {
	select {
	case l.actions <- a:
	default:
	}
}

func (l *Live) scrollBy(delta int) {
	l.mu.Lock()
	l.offset += delta
	l.mu.Unlock()
	l.draw()
}

func (l *Live) scrollTo(offset int) {
	l.mu.Lock()
	l.offset = offset
	l.mu.Unlock()
	l.draw()
}

func (l *Live) snapshotLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// draw repaints the whole screen: header row, then the visible body
// window.
func (l *Live) draw() {
	l.mu.Lock()
	defer l.mu.Unlock()

	width, height := l.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	bodyHeight := height - 1
	maxOffset := len(l.lines) - bodyHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if l.offset > maxOffset {
		l.offset = maxOffset
	}
	if l.offset < 0 {
		l.offset = 0
	}

	l.screen.Clear()

	header := fmt.Sprintf(" %s | %s | q quit, r run ", l.file, l.status)
	headerStyle := tcell.StyleDefault.Reverse(true)
	drawText(l.screen, 0, 0, width, header, headerStyle)

	for row := 0; row < bodyHeight; row++ {
		idx := l.offset + row
		if idx >= len(l.lines) {
			break
		}
		drawText(l.screen, 0, row+1, width, l.lines[idx], tcell.StyleDefault)
	}

	l.screen.Show()
}

// drawText paints text on one row, padding with the style to width.
func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= width {
			return
		}
		screen.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		screen.SetContent(col, y, ' ', nil, style)
	}
}
