package oroauth

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/oroscan/oroauth/internal/audit"
)

// Audit event types emitted by the engine.
const (
	AuditLoginSuccess   = "login_success"
	AuditLoginFailure   = "login_failure"
	AuditLoginThrottled = "login_throttled"
	AuditLogoutSession  = "logout_session"
	AuditLogoutAll      = "logout_all"
	AuditSessionInvalid = "session_invalid"
	AuditPasswordRehash = "password_rehash"
)

type (
	// AuditEvent is one security-relevant outcome.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from the engine's dispatcher goroutine.
	AuditSink = internalaudit.Sink
	// NoOpSink drops audit events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink forwards audit events into a buffered channel.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes one JSON object per line.
	JSONWriterSink = internalaudit.JSONWriterSink
	// SlogSink logs audit events through a *slog.Logger.
	SlogSink = internalaudit.SlogSink
)

// NewChannelSink returns a sink backed by a channel with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}
