package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/access"
	"messenger-service/internal/calls"
	"messenger-service/internal/models"
	"messenger-service/internal/policy"
	"messenger-service/internal/providers"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

const reasonAddParticipants = "Not authorized to add participants."

// ThreadHandler serves thread listing, participants and read markers.
type ThreadHandler struct {
	scope        threadScope
	participants repositories.ParticipantRepository
	messages     repositories.MessageRepository
	directory    *providers.Directory
	calls        *calls.Service
	notify       notifier
	audit        *telemetry.AuditEmitter
	indexCount   int
	now          func() time.Time
}

func NewThreadHandler(
	threads repositories.ThreadRepository,
	participants repositories.ParticipantRepository,
	messages repositories.MessageRepository,
	resolver *access.Resolver,
	directory *providers.Directory,
	callService *calls.Service,
	realtime Realtime,
	pushService *push.Service,
	audit *telemetry.AuditEmitter,
	indexCount int,
) *ThreadHandler {
	return &ThreadHandler{
		scope:        threadScope{threads: threads, resolver: resolver},
		participants: participants,
		messages:     messages,
		directory:    directory,
		calls:        callService,
		notify:       notifier{realtime: realtime, push: pushService},
		audit:        audit,
		indexCount:   indexCount,
		now:          time.Now,
	}
}

type threadResource struct {
	models.Thread
	TypeVerbose string               `json:"type_verbose"`
	Group       bool                 `json:"group"`
	Locked      bool                 `json:"locked"`
	Pending     bool                 `json:"pending"`
	Unread      bool                 `json:"unread"`
	HasCall     bool                 `json:"has_call"`
	UnreadCount int                  `json:"unread_count"`
	Recipient   *models.Provider     `json:"recipient,omitempty"`
	Options     access.ThreadOptions `json:"options"`
}

func (h *ThreadHandler) resource(ctx context.Context, a *access.ThreadAccess) (threadResource, error) {
	unread, err := h.scope.resolver.UnreadCount(ctx, a)
	if err != nil {
		return threadResource{}, err
	}
	active, err := h.calls.ActiveCall(ctx, a.Thread.ID)
	if err != nil {
		return threadResource{}, err
	}
	res := threadResource{
		Thread:      a.Thread,
		TypeVerbose: a.Thread.TypeVerbose(),
		Group:       a.Thread.IsGroup(),
		Locked:      a.IsLocked(),
		Pending:     a.IsPending(),
		Unread:      a.IsUnread(),
		UnreadCount: unread,
		HasCall:     active != nil,
		Options:     a.Options(),
	}
	if a.Thread.IsPrivate() {
		recipient := a.Recipient()
		res.Recipient = &recipient
	}
	return res, nil
}

// ListThreads returns the actor's most recently active threads.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorFromContext(c)

	threads, err := h.scope.threads.ListForProvider(ctx, actor, h.indexCount)
	if err != nil {
		respondError(c, err, "failed to load threads")
		return
	}

	resources := make([]threadResource, 0, len(threads))
	for _, thread := range threads {
		a, err := h.scope.resolver.Resolve(ctx, thread, actor)
		if err != nil {
			respondError(c, err, "failed to load threads")
			return
		}
		res, err := h.resource(ctx, a)
		if err != nil {
			respondError(c, err, "failed to load threads")
			return
		}
		resources = append(resources, res)
	}

	c.JSON(http.StatusOK, gin.H{"threads": resources})
}

func (h *ThreadHandler) ShowThread(c *gin.Context) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if !a.HasCurrentProvider() {
		c.JSON(http.StatusForbidden, gin.H{"error": reasonViewThread})
		return
	}

	res, err := h.resource(c.Request.Context(), a)
	if err != nil {
		respondError(c, err, "failed to load thread")
		return
	}
	c.JSON(http.StatusOK, res)
}

type participantResource struct {
	models.Participant
	Owner models.Provider `json:"owner"`
}

// ListParticipants returns the thread's current participants with their resolved providers.
func (h *ThreadHandler) ListParticipants(c *gin.Context) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if !a.HasCurrentProvider() {
		c.JSON(http.StatusForbidden, gin.H{"error": reasonViewThread})
		return
	}

	current := make([]models.Participant, 0, len(a.Participants))
	owners := make([]models.ProviderRef, 0, len(a.Participants))
	for _, p := range a.Participants {
		if p.IsRemoved() {
			continue
		}
		current = append(current, p)
		owners = append(owners, p.Owner())
	}

	resolved, err := h.directory.ResolveMany(c.Request.Context(), owners)
	if err != nil {
		respondError(c, err, "failed to load participants")
		return
	}
	resources := make([]participantResource, 0, len(current))
	for i, p := range current {
		resources = append(resources, participantResource{Participant: p, Owner: resolved[i]})
	}
	c.JSON(http.StatusOK, gin.H{"participants": resources})
}

type providerParam struct {
	Alias string `json:"alias" binding:"required"`
	ID    string `json:"id" binding:"required"`
}

// AddParticipants adds registered providers to a group. Current members are skipped.
func (h *ThreadHandler) AddParticipants(c *gin.Context) {
	var req struct {
		Providers []providerParam `json:"providers" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if !a.CanAddParticipants() {
		denied(c, policy.Deny(reasonAddParticipants), "participants.add")
		return
	}

	ctx := c.Request.Context()
	existing := make(map[models.ProviderRef]struct{}, len(a.Participants))
	for _, p := range a.Participants {
		existing[p.Owner()] = struct{}{}
	}

	owners := make([]models.ProviderRef, 0, len(req.Providers))
	for _, param := range req.Providers {
		ref := models.Ref(param.Alias, param.ID)
		if _, dup := existing[ref]; dup {
			continue
		}
		_, found, err := h.directory.Find(ctx, ref)
		if err != nil {
			respondError(c, err, "failed to add participants")
			return
		}
		if !found {
			continue
		}
		existing[ref] = struct{}{}
		owners = append(owners, ref)
	}

	if len(owners) == 0 {
		c.JSON(http.StatusOK, gin.H{"participants": []models.Participant{}})
		return
	}

	added, err := h.participants.AddMany(ctx, a.Thread.ID, owners)
	if err != nil {
		respondError(c, err, "failed to add participants")
		return
	}

	body, _ := json.Marshal(owners)
	msg, err := h.messages.Create(ctx, models.Message{
		ThreadID:  a.Thread.ID,
		OwnerType: a.Actor.Type,
		OwnerID:   a.Actor.ID,
		Type:      models.MessageParticipantsAdded,
		Body:      string(body),
	})
	if err != nil {
		respondError(c, err, "failed to add participants")
		return
	}

	a.Participants = append(a.Participants, added...)
	h.notify.thread(ctx, a, push.ParticipantsAdded, gin.H{"message": msg, "participants": added})
	audit(c, h.audit, telemetry.Entry{Action: "threads.participants.add", ThreadID: a.Thread.ID, Text: fmt.Sprintf("%d participants added", len(added))})

	c.JSON(http.StatusOK, gin.H{"participants": added})
}

// MarkRead stamps the actor's last_read on the thread.
func (h *ThreadHandler) MarkRead(c *gin.Context) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	p := a.Participant()
	if p == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": reasonViewThread})
		return
	}

	now := h.now()
	if err := h.participants.MarkRead(c.Request.Context(), p.ID, now); err != nil {
		respondError(c, err, "failed to mark thread read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_read": now})
}
