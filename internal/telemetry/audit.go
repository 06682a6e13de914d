// Package telemetry publishes the audit trail of thread activity.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/logger"
	"messenger-service/internal/models"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Entry is one audited action.
type Entry struct {
	Level     string
	Action    string
	ThreadID  string
	SubjectID string
	Text      string
	RequestID string
	Actor     models.ProviderRef
}

// AuditEnvelope is the published form of an Entry.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id,omitempty"`
	ActorType     string       `json:"actor_type,omitempty"`
	ActorID       string       `json:"actor_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level     string `json:"level"`
	Action    string `json:"action"`
	ThreadID  string `json:"thread_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// AuditEmitter publishes audit entries for mutations and denied requests.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
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

// Emit never fails the caller. A nil emitter drops the entry.
func (e *AuditEmitter) Emit(ctx context.Context, entry Entry) {
	if e == nil || e.publisher == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	log := logger.FromContext(ctx)
	log.Debug("audit emit",
		zap.String("action", entry.Action),
		zap.String("thread_id", entry.ThreadID),
		zap.Stringer("actor", entry.Actor))

	envelope := AuditEnvelope{
		SchemaVersion: 2,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		ActorType:     entry.Actor.Type,
		ActorID:       entry.Actor.ID,
		Payload: AuditPayload{
			Level:     entry.Level,
			Action:    entry.Action,
			ThreadID:  entry.ThreadID,
			SubjectID: entry.SubjectID,
			Text:      entry.Text,
		},
	}
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn("audit publish failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
