package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/access"
	"messenger-service/internal/apperrors"
	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
)

var (
	ErrCallActive    = apperrors.Conflict("Thread already has an active call.")
	ErrCallNotActive = apperrors.Conflict("Call is not active.")
	ErrKicked        = apperrors.Forbidden("You were kicked from that call.")
	ErrNotInCall     = apperrors.Forbidden("You are not in that call.")
)

// Room holds the details produced by room provisioning.
type Room struct {
	ID      string `json:"room_id" binding:"required"`
	Pin     string `json:"room_pin"`
	Secret  string `json:"room_secret"`
	Payload string `json:"payload"`
}

// Service drives call lifecycle transitions.
type Service struct {
	calls    repositories.CallRepository
	messages repositories.MessageRepository
	push     *push.Service
	now      func() time.Time
}

func NewService(calls repositories.CallRepository, messages repositories.MessageRepository, pushService *push.Service) *Service {
	return &Service{calls: calls, messages: messages, push: pushService, now: time.Now}
}

// ViewFor builds a View and loads the actor's participant from storage.
func (s *Service) ViewFor(ctx context.Context, call models.Call, actor models.ProviderRef) (*View, error) {
	v := NewView(call, actor, func() (*models.CallParticipant, error) {
		p, err := s.calls.FindParticipant(ctx, call.ID, actor)
		if errors.Is(err, repositories.ErrCallParticipantNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load call participant: %w", err)
		}
		return &p, nil
	})
	if err := v.Load(); err != nil {
		return nil, err
	}
	return v, nil
}

// ActiveCall returns the thread's running call, or nil.
func (s *Service) ActiveCall(ctx context.Context, threadID string) (*models.Call, error) {
	call, err := s.calls.FindActive(ctx, threadID)
	if errors.Is(err, repositories.ErrCallNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// Start creates a call in the setup phase with the actor as its first participant.
func (s *Service) Start(ctx context.Context, a *access.ThreadAccess, callType int) (models.Call, error) {
	active, err := s.ActiveCall(ctx, a.Thread.ID)
	if err != nil {
		return models.Call{}, err
	}
	if active != nil {
		return models.Call{}, ErrCallActive
	}

	if callType != models.CallAudio {
		callType = models.CallVideo
	}
	call, _, err := s.calls.Create(ctx, models.Call{
		ThreadID:  a.Thread.ID,
		OwnerType: a.Actor.Type,
		OwnerID:   a.Actor.ID,
		Type:      callType,
	})
	if err != nil {
		return models.Call{}, fmt.Errorf("create call: %w", err)
	}

	logger.FromContext(ctx).Info("call started",
		zap.String("call_id", call.ID),
		zap.String("thread_id", call.ThreadID),
		zap.String("owner", a.Actor.String()))
	s.push.Notify(ctx, push.CallStarted, callPayload(call), push.From(a.Others())...)
	return call, nil
}

// CompleteSetup stores the provisioned room and moves the call to active.
func (s *Service) CompleteSetup(ctx context.Context, call models.Call, room Room) (models.Call, error) {
	if call.CallEnded != nil {
		return models.Call{}, ErrCallNotActive
	}
	call.RoomID = &room.ID
	call.RoomPin = &room.Pin
	call.RoomSecret = &room.Secret
	call.Payload = &room.Payload
	if err := s.calls.CompleteSetup(ctx, call); err != nil {
		return models.Call{}, err
	}
	call.SetupComplete = true
	return call, nil
}

// Join adds the actor to the call, or clears left_call when they join again.
func (s *Service) Join(ctx context.Context, v *View) (models.CallParticipant, error) {
	if err := v.Load(); err != nil {
		return models.CallParticipant{}, err
	}
	if !v.IsActive() {
		return models.CallParticipant{}, ErrCallNotActive
	}

	current := v.CurrentParticipant()
	if current == nil {
		return s.calls.AddParticipant(ctx, v.Call.ID, v.Actor)
	}
	if current.Kicked {
		return models.CallParticipant{}, ErrKicked
	}
	if current.LeftCall != nil {
		if err := s.calls.Rejoin(ctx, current.ID); err != nil {
			return models.CallParticipant{}, err
		}
		current.LeftCall = nil
	}
	return *current, nil
}

func (s *Service) Leave(ctx context.Context, v *View) error {
	if err := v.Load(); err != nil {
		return err
	}
	current := v.CurrentParticipant()
	if current == nil || !v.IsInCall() {
		return ErrNotInCall
	}
	now := s.now()
	if err := s.calls.Leave(ctx, current.ID, now); err != nil {
		return err
	}
	current.LeftCall = &now
	return nil
}

// Kick removes target from the call and notifies them.
func (s *Service) Kick(ctx context.Context, v *View, target models.CallParticipant) error {
	if !v.IsActive() {
		return ErrCallNotActive
	}
	if err := s.calls.Kick(ctx, target.ID, s.now()); err != nil {
		return err
	}
	s.push.Notify(ctx, push.KickedFromCall, callPayload(v.Call), target)
	return nil
}

// End stamps the call as ended, records a call system message and notifies its participants.
func (s *Service) End(ctx context.Context, call models.Call) error {
	if call.CallEnded != nil {
		return ErrCallNotActive
	}

	now := s.now()
	if err := s.calls.End(ctx, call.ID, now); err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	call.CallEnded = &now

	participants, err := s.calls.ListParticipants(ctx, call.ID)
	if err != nil {
		return fmt.Errorf("load call participants: %w", err)
	}

	if err := s.storeCallMessage(ctx, call, participants); err != nil {
		logger.FromContext(ctx).Warn("store call message failed", zap.String("call_id", call.ID), zap.Error(err))
	}

	logger.FromContext(ctx).Info("call ended", zap.String("call_id", call.ID), zap.Int("participants", len(participants)))
	s.push.Notify(ctx, push.CallEnded, callPayload(call), push.From(participants)...)

	if err := s.TearDown(ctx, call); err != nil {
		logger.FromContext(ctx).Warn("call teardown failed", zap.String("call_id", call.ID), zap.Error(err))
	}
	return nil
}

// EndAll ends every active call and returns how many were ended.
func (s *Service) EndAll(ctx context.Context) (int, error) {
	active, err := s.calls.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	ended := 0
	for _, call := range active {
		if err := s.End(ctx, call); err != nil {
			return ended, err
		}
		ended++
	}
	return ended, nil
}

func (s *Service) ListActive(ctx context.Context) ([]models.Call, error) {
	return s.calls.ListActive(ctx)
}

// TearDown marks the call's room as released. It runs once an ended call has
// been cleaned up and is a no-op for calls already torn down.
func (s *Service) TearDown(ctx context.Context, call models.Call) error {
	if call.TeardownComplete {
		return nil
	}
	if call.CallEnded == nil {
		return ErrCallNotActive
	}
	if err := s.calls.TearDown(ctx, call.ID); err != nil {
		return fmt.Errorf("tear down call: %w", err)
	}
	return nil
}

func (s *Service) storeCallMessage(ctx context.Context, call models.Call, participants []models.CallParticipant) error {
	owners := make([]models.ProviderRef, 0, len(participants))
	for _, p := range participants {
		owners = append(owners, p.Owner())
	}
	body, err := json.Marshal(struct {
		CallID       string               `json:"call_id"`
		Participants []models.ProviderRef `json:"participants"`
	}{CallID: call.ID, Participants: owners})
	if err != nil {
		return err
	}

	_, err = s.messages.Create(ctx, models.Message{
		ThreadID:  call.ThreadID,
		OwnerType: call.OwnerType,
		OwnerID:   call.OwnerID,
		Type:      models.MessageVideoCall,
		Body:      string(body),
	})
	return err
}

func callPayload(call models.Call) map[string]any {
	return map[string]any{
		"id":        call.ID,
		"thread_id": call.ThreadID,
		"type":      call.Type,
		"owner":     call.Owner(),
	}
}
