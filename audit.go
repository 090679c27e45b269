package goAuthClient

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goAuthClient/internal/audit"
)

type AuditEvent = audit.Event

type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through a slog.Logger.
type SlogSink = audit.SlogSink

// Audit event types.
const (
	AuditEventLogin          = audit.EventLogin
	AuditEventRegister       = audit.EventRegister
	AuditEventLogout         = audit.EventLogout
	AuditEventRefresh        = audit.EventRefresh
	AuditEventSessionCleared = audit.EventSessionCleared
	AuditEventCheckAuth      = audit.EventCheckAuth
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
