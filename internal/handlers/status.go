package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
)

// StatusHandler reports the actor's messenger counters.
type StatusHandler struct {
	threads repositories.ThreadRepository
}

func NewStatusHandler(threads repositories.ThreadRepository) *StatusHandler {
	return &StatusHandler{threads: threads}
}

func (h *StatusHandler) ProviderStatus(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorFromContext(c)

	activeCalls, err := h.threads.CountWithActiveCalls(ctx, actor)
	if err != nil {
		respondError(c, err, "failed to load status")
		return
	}
	unread, err := h.threads.CountUnreadForProvider(ctx, actor)
	if err != nil {
		respondError(c, err, "failed to load status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_calls_count":   activeCalls,
		"unread_threads_count": unread,
	})
}
