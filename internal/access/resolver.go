package access

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"messenger-service/internal/config"
	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/providers"
	"messenger-service/internal/repositories"
)

// LockoutChecker reports whether the call system has been taken down.
type LockoutChecker interface {
	IsDown(ctx context.Context) (bool, error)
}

// Resolver loads what a ThreadAccess needs from storage.
type Resolver struct {
	participants repositories.ParticipantRepository
	messages     repositories.MessageRepository
	directory    *providers.Directory
	lockout      LockoutChecker
	features     config.Features
}

func NewResolver(participants repositories.ParticipantRepository, messages repositories.MessageRepository, directory *providers.Directory, lockout LockoutChecker, features config.Features) *Resolver {
	return &Resolver{
		participants: participants,
		messages:     messages,
		directory:    directory,
		lockout:      lockout,
		features:     features,
	}
}

func (r *Resolver) Features() config.Features {
	return r.features
}

// Resolve loads the thread's participants and builds the actor's access.
func (r *Resolver) Resolve(ctx context.Context, thread models.Thread, actor models.ProviderRef) (*ThreadAccess, error) {
	participants, err := r.participants.ListByThread(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	opts := Options{Features: r.features, CallsDown: r.callsDown(ctx)}

	if thread.IsPrivate() {
		for _, p := range participants {
			if p.IsRemoved() || p.Owner().Equal(actor) {
				continue
			}
			recipient, err := r.directory.Resolve(ctx, p.Owner())
			if err != nil {
				return nil, fmt.Errorf("resolve recipient: %w", err)
			}
			opts.Recipient = &recipient
			break
		}
	}

	return New(thread, actor, participants, opts), nil
}

// UnreadCount counts messages the actor has not read yet. It is not cached.
func (r *Resolver) UnreadCount(ctx context.Context, a *ThreadAccess) (int, error) {
	p := a.Participant()
	if p == nil {
		return 0, nil
	}
	return r.messages.CountSince(ctx, a.Thread.ID, p.LastRead)
}

func (r *Resolver) callsDown(ctx context.Context) bool {
	if !r.features.Calling || r.lockout == nil {
		return false
	}
	down, err := r.lockout.IsDown(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("calls lockout check failed", zap.Error(err))
		return false
	}
	return down
}
