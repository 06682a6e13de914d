package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/access"
	"messenger-service/internal/models"
	"messenger-service/internal/policy"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
)

const maxReactionLength = 64

// ReactionHandler serves message reaction endpoints.
type ReactionHandler struct {
	messages  *MessageHandler
	reactions repositories.ReactionRepository
	policy    policy.ReactionPolicy
	notify    notifier
}

func NewReactionHandler(messages *MessageHandler, reactions repositories.ReactionRepository, realtime Realtime, pushService *push.Service) *ReactionHandler {
	return &ReactionHandler{
		messages:  messages,
		reactions: reactions,
		policy:    policy.NewReactionPolicy(messages.scope.resolver.Features()),
		notify:    notifier{realtime: realtime, push: pushService},
	}
}

// ListReactions returns the message reactions grouped by emoji.
func (h *ReactionHandler) ListReactions(c *gin.Context) {
	a, msg, ok := h.messages.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.ViewAny(a), "reactions.view") {
		return
	}

	reactions, err := h.reactions.ListByMessage(c.Request.Context(), msg.ID)
	if err != nil {
		respondError(c, err, "failed to load reactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message_id": msg.ID,
		"count":      len(reactions),
		"reactions":  models.GroupReactions(reactions),
	})
}

func (h *ReactionHandler) PostReaction(c *gin.Context) {
	var req struct {
		Reaction string `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	reaction := strings.TrimSpace(req.Reaction)
	if reaction == "" || utf8.RuneCountInString(reaction) > maxReactionLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid reaction"})
		return
	}

	a, msg, ok := h.messages.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Create(a, msg), "reactions.create") {
		return
	}

	ctx := c.Request.Context()
	created, err := h.reactions.Create(ctx, models.MessageReaction{
		MessageID: msg.ID,
		OwnerType: a.Actor.Type,
		OwnerID:   a.Actor.ID,
		Reaction:  reaction,
	})
	if err != nil {
		respondError(c, err, "failed to store reaction")
		return
	}
	if !msg.Reacted {
		if err := h.messages.messages.SetReacted(ctx, msg.ID, true); err != nil {
			respondError(c, err, "failed to store reaction")
			return
		}
	}

	h.notifyOwner(c, a, msg, push.ReactionAdded, created)
	c.JSON(http.StatusCreated, created)
}

func (h *ReactionHandler) DeleteReaction(c *gin.Context) {
	a, msg, ok := h.messages.loadMessage(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	reaction, err := h.reactions.Get(ctx, msg.ID, c.Param("reaction_id"))
	if errors.Is(err, repositories.ErrReactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "reaction not found"})
		return
	}
	if err != nil {
		respondError(c, err, "failed to load reaction")
		return
	}
	if denied(c, h.policy.Delete(a, reaction), "reactions.delete") {
		return
	}

	if err := h.reactions.Delete(ctx, reaction.ID); err != nil {
		respondError(c, err, "failed to remove reaction")
		return
	}
	remaining, err := h.reactions.CountByMessage(ctx, msg.ID)
	if err != nil {
		respondError(c, err, "failed to remove reaction")
		return
	}
	if remaining == 0 {
		if err := h.messages.messages.SetReacted(ctx, msg.ID, false); err != nil {
			respondError(c, err, "failed to remove reaction")
			return
		}
	}

	h.notifyOwner(c, a, msg, push.ReactionRemoved, reaction)
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// notifyOwner tells the message owner about reaction changes made by someone else.
func (h *ReactionHandler) notifyOwner(c *gin.Context, a *access.ThreadAccess, msg models.Message, event push.Name, reaction models.MessageReaction) {
	if msg.Owner().Equal(a.Actor) {
		return
	}
	h.notify.direct(c.Request.Context(), a.Thread.ID, event, reaction, msg.Owner())
}
