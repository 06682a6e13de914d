package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/telemetry"
)

const auditKey = "audit_emitter"

// WithAudit exposes emitter to denial auditing in every handler.
func WithAudit(emitter *telemetry.AuditEmitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auditKey, emitter)
		c.Next()
	}
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func actorFromContext(c *gin.Context) models.ProviderRef {
	actor, _ := middleware.Actor(c)
	return actor
}

// audit fills the request id and actor, then emits entry.
func audit(c *gin.Context, emitter *telemetry.AuditEmitter, entry telemetry.Entry) {
	if emitter == nil {
		return
	}
	entry.RequestID = requestIDFromContext(c)
	entry.Actor = actorFromContext(c)
	emitter.Emit(c.Request.Context(), entry)
}

func auditDenial(c *gin.Context, action, reason string) {
	emitter, _ := c.Get(auditKey)
	e, _ := emitter.(*telemetry.AuditEmitter)
	audit(c, e, telemetry.Entry{
		Level:    telemetry.LevelWarn,
		Action:   action,
		ThreadID: c.Param("thread_id"),
		Text:     reason,
	})
}
