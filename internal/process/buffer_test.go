package process

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineBufferSplitsAcrossWrites(t *testing.T) {
	var b lineBuffer
	assert.Empty(t, b.write([]byte("hel")))
	assert.Equal(t, []string{"hello", "wor"}, append(b.write([]byte("lo\nwor\r\n")), b.write(nil)...))
	assert.Equal(t, []string{"", "tail"}, b.write([]byte("\ntail\n")))

	_, ok := b.flush()
	assert.False(t, ok)

	b.write([]byte("partial"))
	line, ok := b.flush()
	assert.True(t, ok)
	assert.Equal(t, "partial", line)
}

func TestLineBufferKeepsWhitespace(t *testing.T) {
	var b lineBuffer
	assert.Equal(t, []string{"  \tindented ✓ \x1b[31m"}, b.write([]byte("  \tindented ✓ \x1b[31m\n")))
}

func TestTailBufferKeepsNewestBytes(t *testing.T) {
	b := newTailBuffer(10)
	_, _ = b.Write([]byte("hello"))
	_, _ = b.Write([]byte("world"))
	assert.Equal(t, "helloworld", b.String())

	_, _ = b.Write([]byte("!!!"))
	assert.Equal(t, "loworld!!!", b.String())

	_, _ = b.Write([]byte(strings.Repeat("x", 20) + "end"))
	assert.Equal(t, "xxxxxxxend", b.String())
}
