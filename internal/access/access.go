// Package access decides what an acting provider may see and do in a thread.
package access

import (
	"messenger-service/internal/config"
	"messenger-service/internal/models"
)

// Options carries the request-scoped inputs that are not stored on the thread.
type Options struct {
	Features config.Features
	// CallsDown is set while the calls-down lockout is active.
	CallsDown bool
	// Recipient is the resolved other party of a private thread. Nil counts as a ghost.
	Recipient *models.Provider
}

// ThreadAccess answers capability questions for one actor in one thread.
// It is built per request and holds no references back to storage.
type ThreadAccess struct {
	Thread       models.Thread
	Actor        models.ProviderRef
	Participants []models.Participant

	current   *models.Participant
	recipient *models.Provider
	features  config.Features
	callsDown bool
}

// New builds a ThreadAccess from already loaded records. Removed participants are ignored.
func New(thread models.Thread, actor models.ProviderRef, participants []models.Participant, opts Options) *ThreadAccess {
	a := &ThreadAccess{
		Thread:    thread,
		Actor:     actor,
		recipient: opts.Recipient,
		features:  opts.Features,
		callsDown: opts.CallsDown,
	}

	a.Participants = make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsRemoved() {
			continue
		}
		a.Participants = append(a.Participants, p)
	}
	for i := range a.Participants {
		if a.Participants[i].Owner().Equal(actor) {
			a.current = &a.Participants[i]
			break
		}
	}
	return a
}

// Participant returns the actor's participant record, if any.
func (a *ThreadAccess) Participant() *models.Participant {
	return a.current
}

// HasCurrentProvider reports whether the actor is a current participant.
func (a *ThreadAccess) HasCurrentProvider() bool {
	return a.current != nil
}

// Recipient returns the other party of a private thread, or the ghost provider.
func (a *ThreadAccess) Recipient() models.Provider {
	if a.recipient == nil {
		return models.Ghost()
	}
	return *a.recipient
}

// RecipientParticipant returns the participant record of the other party in a private thread.
func (a *ThreadAccess) RecipientParticipant() *models.Participant {
	if !a.Thread.IsPrivate() {
		return nil
	}
	for i := range a.Participants {
		if !a.Participants[i].Owner().Equal(a.Actor) {
			return &a.Participants[i]
		}
	}
	return nil
}

// Others returns every current participant except the actor.
func (a *ThreadAccess) Others() []models.Participant {
	others := make([]models.Participant, 0, len(a.Participants))
	for _, p := range a.Participants {
		if !p.Owner().Equal(a.Actor) {
			others = append(others, p)
		}
	}
	return others
}

// IsLocked is true for locked out threads and for private threads whose recipient is gone.
func (a *ThreadAccess) IsLocked() bool {
	if a.Thread.Lockout {
		return true
	}
	return a.Thread.IsPrivate() && a.Recipient().IsGhost()
}

// IsPending is true while either side of a private thread still has to approve it.
func (a *ThreadAccess) IsPending() bool {
	if !a.Thread.IsPrivate() {
		return false
	}
	for _, p := range a.Participants {
		if p.Pending {
			return true
		}
	}
	return false
}

// IsAwaitingMyApproval is true when the actor is the pending side of a private thread.
func (a *ThreadAccess) IsAwaitingMyApproval() bool {
	return a.Thread.IsPrivate() && a.current != nil && a.current.Pending
}

func (a *ThreadAccess) IsAdmin() bool {
	return a.Thread.IsGroup() && a.current != nil && a.current.Admin
}

func (a *ThreadAccess) IsMuted() bool {
	return a.current != nil && a.current.Muted
}

func (a *ThreadAccess) CanAddParticipants() bool {
	return a.Thread.IsGroup() &&
		a.current != nil &&
		!a.IsLocked() &&
		a.Thread.AddParticipants &&
		(a.current.Admin || a.current.AddParticipants)
}

func (a *ThreadAccess) CanInviteParticipants() bool {
	return a.features.Invitations &&
		a.Thread.IsGroup() &&
		a.current != nil &&
		!a.IsLocked() &&
		a.Thread.Invitations &&
		(a.current.Admin || a.current.ManageInvites)
}

func (a *ThreadAccess) CanCall() bool {
	if !a.features.Calling || a.callsDown {
		return false
	}
	if a.current == nil || a.IsLocked() || a.IsPending() {
		return false
	}
	if a.Thread.IsPrivate() {
		return true
	}
	return a.Thread.Calling && (a.current.Admin || a.current.StartCalls)
}

func (a *ThreadAccess) CanMessage() bool {
	if a.current == nil || a.IsLocked() {
		return false
	}
	if a.Thread.IsPrivate() {
		return !a.IsAwaitingMyApproval()
	}
	return a.Thread.Messaging && (a.current.Admin || a.current.SendMessages)
}

func (a *ThreadAccess) CanKnock() bool {
	if !a.features.Knocks {
		return false
	}
	if a.current == nil || a.IsLocked() || a.IsPending() {
		return false
	}
	if a.Thread.IsPrivate() {
		return true
	}
	return a.Thread.Knocks && (a.current.Admin || a.current.SendKnocks)
}

// IsUnread compares the actor's last read time against the thread's last update.
func (a *ThreadAccess) IsUnread() bool {
	if a.current == nil {
		return false
	}
	if a.current.LastRead == nil {
		return true
	}
	return a.Thread.UpdatedAt.After(*a.current.LastRead)
}

// ThreadOptions is the capability block rendered with a thread.
type ThreadOptions struct {
	Admin              bool `json:"admin"`
	Muted              bool `json:"muted"`
	AddParticipants    bool `json:"add_participants"`
	Invitations        bool `json:"invitations"`
	Call               bool `json:"call"`
	Message            bool `json:"message"`
	Knock              bool `json:"knock"`
	AwaitingMyApproval bool `json:"awaiting_my_approval"`
}

func (a *ThreadAccess) Options() ThreadOptions {
	return ThreadOptions{
		Admin:              a.IsAdmin(),
		Muted:              a.IsMuted(),
		AddParticipants:    a.CanAddParticipants(),
		Invitations:        a.CanInviteParticipants(),
		Call:               a.CanCall(),
		Message:            a.CanMessage(),
		Knock:              a.CanKnock(),
		AwaitingMyApproval: a.IsAwaitingMyApproval(),
	}
}
