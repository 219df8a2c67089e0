package process

import (
	"bytes"
	"sync"
)

// lineBuffer splits a byte stream into complete lines. Partial trailing
// data is held until the next write or an explicit flush.
type lineBuffer struct {
	pending []byte
}

// write appends p and returns every line completed by it, without the
// terminating "\n" (a preceding "\r" is dropped too).
func (b *lineBuffer) write(p []byte) []string {
	b.pending = append(b.pending, p...)
	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.pending[:i], []byte{'\r'})))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// flush returns the unterminated remainder, if any.
func (b *lineBuffer) flush() (string, bool) {
	if len(b.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(b.pending, []byte{'\r'}))
	b.pending = nil
	return line, true
}

// tailBuffer accumulates output up to maxBytes, discarding the oldest bytes
// once full.
type tailBuffer struct {
	mu       sync.Mutex
	maxBytes int
	buf      []byte
}

func newTailBuffer(maxBytes int64) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	return &tailBuffer{maxBytes: int(maxBytes)}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if n >= b.maxBytes {
		b.buf = append(b.buf[:0], p[n-b.maxBytes:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.maxBytes; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
