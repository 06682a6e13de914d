package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/access"
	"messenger-service/internal/apperrors"
	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/policy"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
)

const reasonViewThread = "Not authorized to view that thread."

// threadScope loads the thread named in the route and the actor's access to it.
type threadScope struct {
	threads  repositories.ThreadRepository
	resolver *access.Resolver
}

// load writes the error response itself and reports false when the request should stop.
func (s threadScope) load(c *gin.Context) (*access.ThreadAccess, bool) {
	ref := actorFromContext(c)
	if ref.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor"})
		return nil, false
	}

	thread, err := s.threads.GetThread(c.Request.Context(), c.Param("thread_id"))
	if errors.Is(err, repositories.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return nil, false
	}
	if err != nil {
		respondError(c, err, "failed to load thread")
		return nil, false
	}

	a, err := s.resolver.Resolve(c.Request.Context(), thread, ref)
	if err != nil {
		respondError(c, err, "failed to load thread")
		return nil, false
	}
	return a, true
}

// denied writes a 403 for a refused decision.
func denied(c *gin.Context, d policy.Decision, action string) bool {
	if d.Allowed {
		return false
	}
	observability.IncPolicyDenial(action)
	auditDenial(c, action, d.Reason)
	c.JSON(http.StatusForbidden, gin.H{"error": d.Reason})
	return true
}

func respondError(c *gin.Context, err error, fallback string) {
	if appErr, ok := apperrors.As(err); ok {
		c.JSON(apperrors.StatusOf(appErr), gin.H{"error": appErr.Message})
		return
	}
	logger.FromContext(c.Request.Context()).Error(fallback, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// Realtime delivers thread events to connected websocket clients.
type Realtime interface {
	BroadcastTo(ctx context.Context, recipients []models.ProviderRef, event models.ThreadEvent)
}

// notifier sends thread events over websockets to every participant and as push
// notifications to the other participants' devices.
type notifier struct {
	realtime Realtime
	push     *push.Service
}

func (n notifier) thread(ctx context.Context, a *access.ThreadAccess, event push.Name, data any) {
	if n.realtime != nil {
		recipients := make([]models.ProviderRef, 0, len(a.Participants))
		for _, p := range a.Participants {
			recipients = append(recipients, p.Owner())
		}
		n.realtime.BroadcastTo(ctx, recipients, models.ThreadEvent{Event: event.BroadcastAs(), ThreadID: a.Thread.ID, Data: data})
	}
	n.push.Notify(ctx, event, data, push.From(a.Others())...)
}

// direct pushes to specific recipients only.
func (n notifier) direct(ctx context.Context, threadID string, event push.Name, data any, recipients ...push.Recipient) {
	if n.realtime != nil {
		refs := make([]models.ProviderRef, 0, len(recipients))
		for _, r := range recipients {
			refs = append(refs, r.Owner())
		}
		n.realtime.BroadcastTo(ctx, refs, models.ThreadEvent{Event: event.BroadcastAs(), ThreadID: threadID, Data: data})
	}
	n.push.Notify(ctx, event, data, recipients...)
}
