package process

import (
	"strings"
	"sync"

	"github.com/tuzig/vt10x"
)

const (
	defaultCols = 120
	defaultRows = 30
)

// screen mirrors PTY output into a virtual terminal so the visible state of
// a terminal session can be captured at any time.
type screen struct {
	mu   sync.Mutex
	term vt10x.Terminal
	cols int
	rows int
}

func newScreen(cols, rows int) *screen {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}
	return &screen{
		term: vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

func (s *screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.Write(p)
}

func (s *screen) resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Resize(cols, rows)
	s.cols, s.rows = cols, rows
}

// lines returns the visible rows with trailing blanks trimmed.
func (s *screen) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, s.rows)
	row := make([]rune, s.cols)
	for y := 0; y < s.rows; y++ {
		for x := 0; x < s.cols; x++ {
			c := s.term.Cell(x, y).Char
			if c == 0 {
				c = ' '
			}
			row[x] = c
		}
		out[y] = strings.TrimRight(string(row), " ")
	}
	return out
}
