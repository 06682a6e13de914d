package observability

import (
	"context"
	"time"
)

// Envelope wraps events published to the exchange for other services.
type Envelope struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewEnvelope(eventType, eventName string, payload any) Envelope {
	return Envelope{EventType: eventType, EventName: eventName, OccurredAt: time.Now().UTC(), Payload: payload}
}

// CorrelationHeaders links a published event to its request and trace. The
// trace id falls back to the span in ctx.
func CorrelationHeaders(ctx context.Context, requestID, traceID string) map[string]string {
	if traceID == "" {
		traceID = TraceID(ctx)
	}
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
