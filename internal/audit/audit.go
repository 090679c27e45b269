package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Event types emitted by the client.
const (
	EventLogin          = "login"
	EventRegister       = "register"
	EventLogout         = "logout"
	EventRefresh        = "refresh"
	EventSessionCleared = "session_cleared"
	EventCheckAuth      = "check_auth"
)

// Event is one session lifecycle record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent stamps an event with the current time and the error text of err, if any.
func NewEvent(eventType string, err error, metadata map[string]string) Event {
	ev := Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Emitter is the producer side used by session components. *Dispatcher implements it,
// including as a nil pointer.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a buffered channel, mostly for tests. Emit waits for
// room until ctx ends.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line with a single Write call.
type JSONWriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, ev Event) {
	if s == nil || s.w == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if err := json.NewEncoder(&s.buf).Encode(ev); err != nil {
		return
	}
	_, _ = s.w.Write(s.buf.Bytes())
}

// SlogSink logs events: successes at Info, failures at Warn.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("event", ev.EventType),
		slog.Bool("success", ev.Success),
	}
	if ev.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ev.RequestID))
	}
	if ev.Error != "" {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", ev.Error))
	}
	for k, v := range ev.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	s.logger.LogAttrs(ctx, level, "goAuthClient: audit", attrs...)
}
