package process

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu     sync.Mutex
	chunks []string
}

func (r *flushRecorder) flush(p []byte) {
	r.mu.Lock()
	r.chunks = append(r.chunks, string(p))
	r.mu.Unlock()
}

func (r *flushRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chunks...)
}

func TestRawCoalescerBatchesWithinInterval(t *testing.T) {
	rec := &flushRecorder{}
	c := newRawCoalescer(30*time.Millisecond, 1024, rec.flush)
	c.write([]byte("a"))
	c.write([]byte("b"))
	c.write([]byte("c"))

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"abc"}, rec.get())
}

func TestRawCoalescerFlushesAtSizeLimit(t *testing.T) {
	rec := &flushRecorder{}
	c := newRawCoalescer(time.Hour, 8, rec.flush)
	c.write([]byte("1234"))
	assert.Empty(t, rec.get())
	c.write([]byte("56789"))
	assert.Equal(t, []string{"123456789"}, rec.get())

	c.write([]byte("tail"))
	c.close()
	assert.Equal(t, []string{"123456789", "tail"}, rec.get())
	assert.Equal(t, "123456789tail", strings.Join(rec.get(), ""))
}
