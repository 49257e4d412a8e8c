package runner

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// maxLineBytes bounds a single captured line. Preprocessed source can
// produce very long lines once macros expand, so the cap is generous.
const maxLineBytes = 1024 * 1024

// capture accumulates one output stream line by line as the process emits
// it. Each stream gets its own capture so stdout and stderr never
// interleave; any combined view is derived afterwards.
type capture struct {
	mu    sync.Mutex
	lines []string
}

// consume reads r to EOF, appending each line. It is run on its own
// goroutine per stream and returns when the pipe closes.
func (c *capture) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		c.append(scanner.Text())
	}
}

func (c *capture) append(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

// String returns the captured stream with lines rejoined by newlines.
func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

// Len returns the number of captured lines.
func (c *capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}
