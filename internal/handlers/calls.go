package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/access"
	"messenger-service/internal/calls"
	"messenger-service/internal/models"
	"messenger-service/internal/policy"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

const callIndexCount = 25

// CallHandler serves call endpoints of a thread.
type CallHandler struct {
	scope   threadScope
	calls   repositories.CallRepository
	service *calls.Service
	policy  policy.CallPolicy
	audit   *telemetry.AuditEmitter
}

func NewCallHandler(threads repositories.ThreadRepository, callRepo repositories.CallRepository, resolver *access.Resolver, service *calls.Service, audit *telemetry.AuditEmitter) *CallHandler {
	return &CallHandler{
		scope:   threadScope{threads: threads, resolver: resolver},
		calls:   callRepo,
		service: service,
		policy:  policy.NewCallPolicy(),
		audit:   audit,
	}
}

type callOptions struct {
	Admin         bool       `json:"admin"`
	Kicked        bool       `json:"kicked"`
	SetupComplete bool       `json:"setup_complete"`
	InCall        bool       `json:"in_call"`
	LeftCall      bool       `json:"left_call"`
	Joined        bool       `json:"joined"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	RoomID        *string    `json:"room_id,omitempty"`
	RoomPin       *string    `json:"room_pin,omitempty"`
	Payload       *string    `json:"payload,omitempty"`
}

type callResource struct {
	models.Call
	TypeVerbose string       `json:"type_verbose"`
	Active      bool         `json:"active"`
	Options     *callOptions `json:"options,omitempty"`
}

// callResourceFor renders the call for the actor. Options only appear while the
// call is active and room details are hidden from kicked participants.
func callResourceFor(a *access.ThreadAccess, v *calls.View) callResource {
	res := callResource{Call: v.Call, TypeVerbose: "VIDEO", Active: v.IsActive()}
	if !v.IsVideoCall() {
		res.TypeVerbose = "AUDIO"
	}
	if !res.Active {
		return res
	}

	opts := &callOptions{
		Admin:         v.IsCallAdmin(a.IsAdmin()),
		Kicked:        v.WasKicked(),
		SetupComplete: v.Call.SetupComplete,
		InCall:        v.IsInCall(),
		LeftCall:      v.HasLeftCall(),
		Joined:        v.HasJoinedCall(),
	}
	if p := v.CurrentParticipant(); p != nil {
		opts.JoinedAt = &p.CreatedAt
	}
	if !opts.Kicked {
		opts.RoomID = v.Call.RoomID
		opts.RoomPin = v.Call.RoomPin
		opts.Payload = v.Call.Payload
	}
	res.Options = opts
	return res
}

// loadCall resolves the thread, the call in the route and the actor's view of it.
func (h *CallHandler) loadCall(c *gin.Context) (*access.ThreadAccess, *calls.View, bool) {
	a, ok := h.scope.load(c)
	if !ok {
		return nil, nil, false
	}
	call, err := h.calls.Get(c.Request.Context(), a.Thread.ID, c.Param("call_id"))
	if errors.Is(err, repositories.ErrCallNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return nil, nil, false
	}
	if err != nil {
		respondError(c, err, "failed to load call")
		return nil, nil, false
	}
	v, err := h.service.ViewFor(c.Request.Context(), call, a.Actor)
	if err != nil {
		respondError(c, err, "failed to load call")
		return nil, nil, false
	}
	return a, v, true
}

func (h *CallHandler) ListCalls(c *gin.Context) {
	a, ok := h.scope.load(c)
	if !ok {
		return
	}
	if denied(c, h.policy.ViewAny(a), "calls.view") {
		return
	}

	list, err := h.calls.List(c.Request.Context(), a.Thread.ID, callIndexCount)
	if err != nil {
		respondError(c, err, "failed to load calls")
		return
	}
	resources := make([]callResource, 0, len(list))
	for _, call := range list {
		v, err := h.service.ViewFor(c.Request.Context(), call, a.Actor)
		if err != nil {
			respondError(c, err, "failed to load calls")
			return
		}
		resources = append(resources, callResourceFor(a, v))
	}
	c.JSON(http.StatusOK, gin.H{"calls": resources})
}

func (h *CallHandler) ShowCall(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.View(a, v.Call), "calls.view") {
		return
	}
	c.JSON(http.StatusOK, callResourceFor(a, v))
}

func (h *CallHandler) ListParticipants(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.View(a, v.Call), "calls.view") {
		return
	}

	participants, err := h.calls.ListParticipants(c.Request.Context(), v.Call.ID)
	if err != nil {
		respondError(c, err, "failed to load call participants")
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *CallHandler) ShowParticipant(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.View(a, v.Call), "calls.view") {
		return
	}

	participant, ok := h.loadParticipant(c, v)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, participant)
}

func (h *CallHandler) loadParticipant(c *gin.Context, v *calls.View) (models.CallParticipant, bool) {
	participant, err := h.calls.GetParticipant(c.Request.Context(), v.Call.ID, c.Param("participant_id"))
	if errors.Is(err, repositories.ErrCallParticipantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call participant not found"})
		return models.CallParticipant{}, false
	}
	if err != nil {
		respondError(c, err, "failed to load call participant")
		return models.CallParticipant{}, false
	}
	return participant, true
}

// StartCall opens a call in the thread. Video is the default type.
func (h *CallHandler) StartCall(c *gin.Context) {
	var req struct {
		Type int `json:"type"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	a, ok := h.scope.load(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	active, err := h.service.ActiveCall(ctx, a.Thread.ID)
	if err != nil {
		respondError(c, err, "failed to start call")
		return
	}
	if denied(c, h.policy.Create(a, active != nil), "calls.create") {
		return
	}

	call, err := h.service.Start(ctx, a, req.Type)
	if err != nil {
		respondError(c, err, "failed to start call")
		return
	}
	audit(c, h.audit, telemetry.Entry{Action: "calls.create", ThreadID: a.Thread.ID, SubjectID: call.ID})

	v, err := h.service.ViewFor(ctx, call, a.Actor)
	if err != nil {
		respondError(c, err, "failed to load call")
		return
	}
	c.JSON(http.StatusCreated, callResourceFor(a, v))
}

// CompleteSetup records the provisioned room and activates the call.
func (h *CallHandler) CompleteSetup(c *gin.Context) {
	var room calls.Room
	if err := c.ShouldBindJSON(&room); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if !v.Call.Owner().Equal(a.Actor) || v.Call.SetupComplete {
		denied(c, policy.Deny(policy.ReasonStartCall), "calls.setup")
		return
	}

	call, err := h.service.CompleteSetup(c.Request.Context(), v.Call, room)
	if err != nil {
		respondError(c, err, "failed to complete call setup")
		return
	}
	updated, err := h.service.ViewFor(c.Request.Context(), call, a.Actor)
	if err != nil {
		respondError(c, err, "failed to load call")
		return
	}
	c.JSON(http.StatusOK, callResourceFor(a, updated))
}

func (h *CallHandler) JoinCall(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Join(a, v), "calls.join") {
		return
	}

	participant, err := h.service.Join(c.Request.Context(), v)
	if err != nil {
		respondError(c, err, "failed to join call")
		return
	}
	c.JSON(http.StatusOK, participant)
}

func (h *CallHandler) LeaveCall(c *gin.Context) {
	_, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.Leave(v), "calls.leave") {
		return
	}

	if err := h.service.Leave(c.Request.Context(), v); err != nil {
		respondError(c, err, "failed to leave call")
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

func (h *CallHandler) EndCall(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	if denied(c, h.policy.End(a, v), "calls.end") {
		return
	}

	if err := h.service.End(c.Request.Context(), v.Call); err != nil {
		respondError(c, err, "failed to end call")
		return
	}
	audit(c, h.audit, telemetry.Entry{Action: "calls.end", ThreadID: a.Thread.ID, SubjectID: v.Call.ID})
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

func (h *CallHandler) KickParticipant(c *gin.Context) {
	a, v, ok := h.loadCall(c)
	if !ok {
		return
	}
	target, ok := h.loadParticipant(c, v)
	if !ok {
		return
	}
	if denied(c, h.policy.Kick(a, v, target), "calls.kick") {
		return
	}

	if err := h.service.Kick(c.Request.Context(), v, target); err != nil {
		respondError(c, err, "failed to kick participant")
		return
	}
	audit(c, h.audit, telemetry.Entry{Action: "calls.kick", ThreadID: a.Thread.ID, SubjectID: target.ID, Text: "kicked from call " + v.Call.ID})
	c.JSON(http.StatusOK, gin.H{"kicked": true})
}
