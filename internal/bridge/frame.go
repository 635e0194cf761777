// Package bridge implements the StreamBridge: a transformer that
// consumes Anthropic's SSE event stream and emits OpenAI-compatible
// streaming chunks. Grounded on
// other_examples/smart-proxy's internal/upstream/anthropiccompat/convert.go
// (event framing, inverted direction) and
// other_examples/envoyproxy-ai-gateway's extractUsageFromBufferEvent
// (incremental buffering across reads).
package bridge

import (
	"bufio"
	"io"
	"strings"
)

// EventReader reads one fully-assembled SSE event payload at a time
// from an upstream byte stream. Anthropic's events are delimited by a
// blank line and may carry a "data:" field across several lines
// (joined with "\n") plus an "event:" field this gateway does not need
// to inspect — the event's own "type" field inside the JSON payload is
// authoritative. bufio.Reader carries any incomplete trailing line
// across underlying Read calls, so a read that lands mid-event is
// resumed correctly on the next call rather than dropped.
type EventReader struct {
	r *bufio.Reader
}

func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event's joined data payload, or io.EOF once
// the upstream stream ends cleanly.
func (e *EventReader) Next() ([]byte, error) {
	var dataLines []string
	for {
		line, err := e.r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")

		if trimmed == "" {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
		} else if data, ok := strings.CutPrefix(trimmed, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(data, " "))
		}

		if err != nil {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			return nil, err
		}
	}
}
