package process

import (
	"sync"
	"time"
)

// rawCoalescer batches raw terminal output. Pending bytes are flushed when
// the interval since the first unflushed write elapses or maxBytes is
// reached, whichever comes first.
type rawCoalescer struct {
	mu       sync.Mutex
	pending  []byte
	timer    *time.Timer
	interval time.Duration
	maxBytes int
	flushFn  func([]byte)
}

func newRawCoalescer(interval time.Duration, maxBytes int, flushFn func([]byte)) *rawCoalescer {
	return &rawCoalescer{interval: interval, maxBytes: maxBytes, flushFn: flushFn}
}

func (c *rawCoalescer) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, p...)
	if len(c.pending) >= c.maxBytes || c.interval <= 0 {
		c.flushLocked()
		return
	}
	if c.timer != nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(c.interval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timer != t {
			return
		}
		c.timer = nil
		c.flushLocked()
	})
	c.timer = t
}

// close flushes whatever is pending.
func (c *rawCoalescer) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *rawCoalescer) flushLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.pending) == 0 {
		return
	}
	data := c.pending
	c.pending = nil
	c.flushFn(data)
}
