package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/access"
	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/policy"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
)

// AttachmentStore persists uploaded files.
type AttachmentStore interface {
	Put(ctx context.Context, threadID string, kind storage.Kind, filename string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// MessageHandler serves message endpoints.
type MessageHandler struct {
	scope      threadScope
	messages   repositories.MessageRepository
	store      AttachmentStore
	policy     policy.MessagePolicy
	notify     notifier
	audit      *telemetry.AuditEmitter
	indexCount int
	now        func() time.Time
}

func NewMessageHandler(
	threads repositories.ThreadRepository,
	messages repositories.MessageRepository,
	resolver *access.Resolver,
	store AttachmentStore,
	realtime Realtime,
	pushService *push.Service,
	audit *telemetry.AuditEmitter,
	indexCount int,
) *MessageHandler {
	return &MessageHandler{
		scope:      threadScope{threads: threads, resolver: resolver},
		messages:   messages,
		store:      store,
		policy:     policy.NewMessagePolicy(resolver.Features()),
		notify:     notifier{realtime: realtime, push: pushService},
		audit:      audit,
		indexCount: indexCount,
		now:        time.Now,
	}
}

// loadMessage resolves the thread and the message named in the route.
func (h *MessageHandler) loadMessage(c *gin.Context) (*access.ThreadAccess, models.Message, bool) {
	a, ok := h.scope.load(c)
	if !ok {
		return nil, models.Message{}, false
	}
	msg, err := h.messages.Get(c.Request.Context(), a.Thread.ID, c.Param("message_id"))
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return nil, models.Message{}, false
	}
	if err != nil {
		respondError(c, err, "failed to load message")
		return nil, models.Message{}, false
	}
	return a, msg, true
}

// ListMessages pages backwards from the optional "before" timestamp.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if denied(c, h.policy.ViewAny(a), "messages.view") {
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &parsed
	}

	msgs, err := h.messages.List(c.Request.Context(), a.Thread.ID, before, h.indexCount)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) ShowMessage(c *gin.Context) {
	a, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.View(a, msg), "messages.view") {
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		Message   string  `json:"message" binding:"required,max=5000"`
		ReplyToID *string `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "message is empty"})
		return
	}

	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Create(a), "messages.create") {
		return
	}

	ctx := c.Request.Context()
	if req.ReplyToID != nil {
		if _, err := h.messages.Get(ctx, a.Thread.ID, *req.ReplyToID); err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reply_to_id does not belong to this thread"})
				return
			}
			respondError(c, err, "failed to store message")
			return
		}
	}

	h.create(c, a, models.Message{
		ThreadID:  a.Thread.ID,
		OwnerType: a.Actor.Type,
		OwnerID:   a.Actor.ID,
		Type:      models.MessageText,
		Body:      body,
		ReplyToID: req.ReplyToID,
	})
}

func (h *MessageHandler) create(c *gin.Context, a *access.ThreadAccess, msg models.Message) {
	created, err := h.messages.Create(c.Request.Context(), msg)
	if err != nil {
		respondError(c, err, "failed to store message")
		return
	}
	h.notify.thread(c.Request.Context(), a, push.NewMessage, created)
	c.JSON(http.StatusCreated, created)
}

func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	a, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Update(a, msg), "messages.update") {
		return
	}

	body := strings.TrimSpace(req.Message)
	if body == msg.Body {
		c.JSON(http.StatusOK, msg)
		return
	}

	updated, err := h.messages.UpdateBody(c.Request.Context(), msg.ID, body, h.now())
	if err != nil {
		respondError(c, err, "failed to update message")
		return
	}
	h.notify.thread(c.Request.Context(), a, push.MessageEdited, updated)
	c.JSON(http.StatusOK, updated)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	a, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Delete(a, msg), "messages.delete") {
		return
	}

	if err := h.messages.SoftDelete(c.Request.Context(), msg.ID, h.now()); err != nil {
		respondError(c, err, "failed to remove message")
		return
	}
	h.notify.thread(c.Request.Context(), a, push.MessageArchived, gin.H{"message_id": msg.ID, "thread_id": msg.ThreadID})
	audit(c, h.audit, telemetry.Entry{Action: "messages.delete", ThreadID: a.Thread.ID, SubjectID: msg.ID})
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// MessageHistory lists the previous bodies of an edited message.
func (h *MessageHandler) MessageHistory(c *gin.Context) {
	a, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if denied(c, h.policy.ViewEdits(a, msg), "messages.history") {
		return
	}

	edits, err := h.messages.ListEdits(c.Request.Context(), msg.ID)
	if err != nil {
		respondError(c, err, "failed to load message history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"edits": edits})
}

func (h *MessageHandler) PostImage(c *gin.Context) {
	h.upload(c, storage.KindImage, "image", models.MessageImage, h.policy.CreateImage)
}

func (h *MessageHandler) PostDocument(c *gin.Context) {
	h.upload(c, storage.KindDocument, "document", models.MessageDocument, h.policy.CreateDocument)
}

func (h *MessageHandler) PostAudio(c *gin.Context) {
	h.upload(c, storage.KindAudio, "audio", models.MessageAudio, h.policy.CreateAudio)
}

func (h *MessageHandler) upload(c *gin.Context, kind storage.Kind, field string, messageType int, rule func(*access.ThreadAccess) policy.Decision) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if denied(c, rule(a), "messages.upload."+field) {
		return
	}

	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": field + " file is required"})
		return
	}
	if err := storage.Validate(kind, header.Filename, header.Size); err != nil {
		respondError(c, err, "invalid "+field)
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	key, err := h.store.Put(ctx, a.Thread.ID, kind, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err, "failed to store "+field)
		return
	}

	created, err := h.messages.Create(ctx, models.Message{
		ThreadID:  a.Thread.ID,
		OwnerType: a.Actor.Type,
		OwnerID:   a.Actor.ID,
		Type:      messageType,
		Body:      key,
	})
	if err != nil {
		if rmErr := h.store.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			logger.FromContext(ctx).Warn("orphaned attachment", zap.String("key", key), zap.Error(rmErr))
		}
		respondError(c, err, "failed to store message")
		return
	}
	h.notify.thread(ctx, a, push.NewMessage, created)
	c.JSON(http.StatusCreated, created)
}
