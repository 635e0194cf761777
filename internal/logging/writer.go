package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/pubsub"

	"github.com/go-logfmt/logfmt"
)

// Attr is a single non-reserved key/value pair parsed out of a logfmt record.
type Attr struct {
	Key   string
	Value string
}

// LogMessage is a parsed record written through the default slog
// handler's logfmt output.
type LogMessage struct {
	ID         string
	Time       time.Time
	Level      string
	Message    string
	Attributes []Attr
}

type logData struct {
	messages []LogMessage
	*pubsub.Broker[LogMessage]
	lock sync.Mutex
}

func (l *logData) Add(ctx context.Context, msg LogMessage) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.messages = append(l.messages, msg)
	if len(l.messages) > 1000 {
		l.messages = l.messages[len(l.messages)-1000:]
	}
	return l.Publish(ctx, pubsub.CreatedEvent, msg)
}

func (l *logData) List() []LogMessage {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.messages
}

var defaultLogData = &logData{
	messages: make([]LogMessage, 0),
	Broker:   pubsub.NewBroker[LogMessage](),
}

// Writer is an io.Writer that tees slog's text output to stdout while
// also decoding it as logfmt into the in-process ring buffer so a
// caller can Subscribe to recent log activity without re-parsing
// stdout. Never write secrets (tokens, code_verifier, auth codes) as
// log arguments; they would end up here.
type Writer struct{}

func (w *Writer) Write(p []byte) (int, error) {
	if _, err := os.Stdout.Write(p); err != nil {
		return 0, fmt.Errorf("writing to stdout: %w", err)
	}

	d := logfmt.NewDecoder(bytes.NewReader(p))
	for d.ScanRecord() {
		msg := LogMessage{
			ID:   fmt.Sprintf("%d", time.Now().UnixNano()),
			Time: time.Now(),
		}
		for d.ScanKeyval() {
			switch string(d.Key()) {
			case "time":
				if parsed, err := time.Parse(time.RFC3339, string(d.Value())); err == nil {
					msg.Time = parsed
				}
			case "level":
				msg.Level = strings.ToLower(string(d.Value()))
			case "msg":
				msg.Message = string(d.Value())
			default:
				msg.Attributes = append(msg.Attributes, Attr{
					Key:   string(d.Key()),
					Value: string(d.Value()),
				})
			}
		}
		if err := defaultLogData.Add(context.Background(), msg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish log message: %v\n", err)
		}
	}
	return len(p), nil
}

func NewWriter() *Writer {
	return &Writer{}
}

func Subscribe(ctx context.Context) <-chan pubsub.Event[LogMessage] {
	return defaultLogData.Subscribe(ctx)
}

func List() []LogMessage {
	return defaultLogData.List()
}
