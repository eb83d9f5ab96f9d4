package authcore

import (
	"context"
	"io"

	"github.com/solvrey/authcore/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes JSON-encoded events, one per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

const (
	auditEventLogin             = "session.login"
	auditEventLogout            = "session.logout"
	auditEventLogoutAll         = "session.logout_all"
	auditEventRenew             = "session.renew"
	auditEventCancel            = "session.cancel"
	auditEventValidate          = "session.validate"
	auditEventEnrollInitiated   = "mfa.enroll.initiated"
	auditEventEnrollConfirmed   = "mfa.enroll.confirmed"
	auditEventEnrollFailed      = "mfa.enroll.failed"
	auditEventMethodDisabled    = "mfa.method.disabled"
	auditEventChallengeSent     = "mfa.challenge.sent"
	auditEventChallengeVerified = "mfa.challenge.verified"
	auditEventChallengeFailed   = "mfa.challenge.failed"
	auditEventDeliveryFailed    = "mfa.delivery.failed"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	method Method,
	cause error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.clock(),
		EventType: eventType,
		AccountID: accountID,
		Success:   success,
		Metadata:  metadata,
	}
	if method.valid() {
		event.Method = method.String()
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.Emit(ctx, event)
}
