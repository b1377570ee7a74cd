package telemetry

import (
	"context"
	"log/slog"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditLevel string

const (
	AuditInfo AuditLevel = "INFO"
	AuditWarn AuditLevel = "WARN"
)

// Actor is whoever triggered an audited change. A zero UserID is left out of the envelope.
type Actor struct {
	RequestID string
	UserID    int
}

// AuditEmitter publishes audit records of group, membership and announcement changes.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int         `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level    AuditLevel `json:"level"`
	Text     string     `json:"text"`
	Action   string     `json:"action,omitempty"`
	GroupID  int        `json:"group_id,omitempty"`
	TargetID int        `json:"target_id,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes one audit record. Payloads without a level are INFO. Publish failures
// are logged only.
func (e *AuditEmitter) Emit(ctx context.Context, actor Actor, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}
	if payload.Level == "" {
		payload.Level = AuditInfo
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     actor.RequestID,
		Payload:       payload,
	}
	if actor.UserID != 0 {
		userID := actor.UserID
		envelope.UserID = &userID
	}

	slog.Debug("audit emit", "action", payload.Action, "group_id", payload.GroupID, "request_id", actor.RequestID)
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		slog.Warn("audit publish failed", "action", payload.Action, "err", err)
	}
}
