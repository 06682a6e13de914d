package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/locator"
)

type LocatorHandler struct {
	locator *locator.Locator
}

func NewLocatorHandler(l *locator.Locator) *LocatorHandler {
	return &LocatorHandler{locator: l}
}

// LocateRecipient resolves a provider and the private thread the actor shares with it.
func (h *LocatorHandler) LocateRecipient(c *gin.Context) {
	result, err := h.locator.LocateOrFail(c.Request.Context(), actorFromContext(c), c.Param("alias"), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to locate recipient")
		return
	}

	var threadID *string
	if result.Thread != nil {
		threadID = &result.Thread.ID
	}
	c.JSON(http.StatusOK, gin.H{"recipient": result.Recipient, "thread_id": threadID})
}
