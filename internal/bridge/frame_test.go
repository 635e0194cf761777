package bridge

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventReader_SingleLineEvent(t *testing.T) {
	r := NewEventReader(strings.NewReader("data: {\"type\":\"message_stop\"}\n\n"))

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"message_stop"}`, string(event))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_MultiLineDataJoinedWithNewline(t *testing.T) {
	r := NewEventReader(strings.NewReader("event: message_delta\ndata: line one\ndata: line two\n\n"))

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(event))
}

func TestEventReader_MultipleEventsInOneRead(t *testing.T) {
	r := NewEventReader(strings.NewReader("data: first\n\ndata: second\n\n"))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))
}

// chunkedReader returns its bytes a handful at a time, simulating
// arbitrary network chunk boundaries that may split mid-line.
type chunkedReader struct {
	data []byte
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestEventReader_SurvivesArbitraryChunkBoundaries(t *testing.T) {
	payload := "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hello\"}}\n\n"

	for size := 1; size <= 7; size++ {
		r := NewEventReader(&chunkedReader{data: []byte(payload), size: size})
		event, err := r.Next()
		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, `{"type":"content_block_delta","delta":{"type":"text_delta","text":"hello"}}`, string(event), "chunk size %d", size)
	}
}

func TestEventReader_NoTrailingBlankLineStillReturnsBufferedData(t *testing.T) {
	r := NewEventReader(strings.NewReader("data: no trailing newline"))

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "no trailing newline", string(event))
}
