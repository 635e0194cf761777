package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
)

// anthropicEvent is the minimal shape this bridge needs out of any
// Anthropic stream event. All event types share one flattened struct
// (mirroring the wire format directly) rather than routing through
// anthropic-sdk-go's event-union type, whose exact field names this
// gateway has no way to verify against without compiling — decoding
// the documented wire shape by hand is the safer, still idiomatic
// choice here (the same approach other_examples/smart-proxy takes for
// its own SSE event structs).
type anthropicEvent struct {
	Type         string `json:"type"`
	Message      *struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		StopReason   string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type state int

const (
	stateIdle state = iota
	stateStreaming
	stateDone
)

// Bridge implements §4.6's state machine: Idle -> Streaming -> Done.
// Every chunk it emits shares the same id/created/model.
type Bridge struct {
	ID      string
	Model   string
	Created int64

	state      state
	stopReason string
}

func New(id, model string, created int64) *Bridge {
	return &Bridge{ID: id, Model: model, Created: created}
}

// Run reads framed Anthropic SSE events from upstream and writes
// OpenAI-shaped SSE chunks to w, flushing after every event so
// backpressure propagates to the client. It returns when the upstream
// stream ends, the state machine reaches Done, or ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, upstream io.Reader, w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	reader := NewEventReader(upstream)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if b.state != stateDone {
					return b.emitError(w, flusher, "upstream stream ended unexpectedly")
				}
				return nil
			}
			return b.emitError(w, flusher, err.Error())
		}

		var event anthropicEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			logging.Warn("stream bridge: dropping unparseable event", "error", err)
			continue
		}

		if err := b.handle(event, w, flusher); err != nil {
			return err
		}
		if b.state == stateDone {
			return nil
		}
	}
}

func (b *Bridge) handle(event anthropicEvent, w io.Writer, flusher http.Flusher) error {
	switch b.state {
	case stateIdle:
		if event.Type == "message_start" {
			b.state = stateStreaming
			return b.emit(w, flusher, Chunk{
				ID: b.ID, Object: "chat.completion.chunk", Created: b.Created, Model: b.Model,
				Choices: []ChunkChoice{{Index: 0, Delta: Delta{Role: "assistant"}}},
			})
		}
		return nil

	case stateStreaming:
		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				return b.emit(w, flusher, Chunk{
					ID: b.ID, Object: "chat.completion.chunk", Created: b.Created, Model: b.Model,
					Choices: []ChunkChoice{{Index: 0, Delta: Delta{Content: event.Delta.Text}}},
				})
			}
			return nil

		case "message_delta":
			if event.Delta != nil {
				b.stopReason = event.Delta.StopReason
			}
			return nil

		case "message_stop":
			reason := finishReasonPtr(b.stopReason)
			if err := b.emit(w, flusher, Chunk{
				ID: b.ID, Object: "chat.completion.chunk", Created: b.Created, Model: b.Model,
				Choices: []ChunkChoice{{Index: 0, Delta: Delta{}, FinishReason: reason}},
			}); err != nil {
				return err
			}
			b.state = stateDone
			return writeDone(w, flusher)

		default:
			return nil
		}

	default:
		return nil
	}
}

func (b *Bridge) emitError(w io.Writer, flusher http.Flusher, message string) error {
	if b.state == stateIdle {
		return fmt.Errorf("stream bridge: %s", message)
	}
	stop := "stop"
	if err := b.emit(w, flusher, Chunk{
		ID: b.ID, Object: "chat.completion.chunk", Created: b.Created, Model: b.Model,
		Choices: []ChunkChoice{{Index: 0, Delta: Delta{}, FinishReason: &stop}},
		Error:   &ChunkError{Message: message},
	}); err != nil {
		return err
	}
	return writeDone(w, flusher)
}

func (b *Bridge) emit(w io.Writer, flusher http.Flusher, chunk Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("stream bridge: marshaling chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func writeDone(w io.Writer, flusher http.Flusher) error {
	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func finishReasonPtr(stopReason string) *string {
	mapped := mapFinishReason(stopReason)
	return &mapped
}

// mapFinishReason duplicates translator.MapFinishReason's table rather
// than importing the translator package, keeping this package's only
// dependency on the wire-level JSON shape it owns.
func mapFinishReason(stopReason string) string {
	switch stopReason {
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return "stop"
	}
}
