package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), NewEvent(EventLogin, nil, nil))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), NewEvent(EventRefresh, errors.New("refresh denied"), map[string]string{"reason": "denied"}))

	select {
	case ev := <-sink.Events():
		if ev.EventType != EventRefresh || ev.Success || ev.Error != "refresh denied" {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Metadata["reason"] != "denied" {
			t.Fatalf("metadata not carried: %+v", ev.Metadata)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), NewEvent(EventLogout, nil, nil))
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), NewEvent(EventLogin, nil, nil))
	sink.Emit(context.Background(), NewEvent(EventLogout, nil, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if ev.EventType != EventLogout || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
}

type panicSink struct {
	next Sink
}

func (s panicSink) Emit(ctx context.Context, ev Event) {
	if ev.EventType == EventRefresh {
		panic("sink exploded")
	}
	s.next.Emit(ctx, ev)
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	var logs bytes.Buffer
	out := NewChannelSink(4)
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		Logger:     slog.New(slog.NewTextHandler(&logs, nil)),
	}, panicSink{next: out})

	d.Emit(context.Background(), NewEvent(EventRefresh, nil, nil))
	d.Emit(context.Background(), NewEvent(EventLogout, nil, nil))
	d.Close()

	select {
	case ev := <-out.Events():
		if ev.EventType != EventLogout {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("event after the panic was not delivered")
	}
	if !strings.Contains(logs.String(), "audit sink panicked") {
		t.Fatalf("panic not logged: %q", logs.String())
	}
}

func TestDispatcherCloseFlushesAndRejects(t *testing.T) {
	out := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, out)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), NewEvent(EventCheckAuth, nil, nil))
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), NewEvent(EventLogin, nil, nil))

	if got := len(out.Events()); got != 5 {
		t.Fatalf("delivered %d events, want 5", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Emit(context.Background(), NewEvent(EventLogin, nil, map[string]string{"endpoint": "/auth/login"}))
	sink.Emit(context.Background(), NewEvent(EventRefresh, errors.New("refresh denied"), nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=INFO") || !strings.Contains(lines[0], "event=login") || !strings.Contains(lines[0], "endpoint=/auth/login") {
		t.Fatalf("unexpected success line %q", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], `error="refresh denied"`) {
		t.Fatalf("unexpected failure line %q", lines[1])
	}
}
