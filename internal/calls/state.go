// Package calls tracks call lifecycle and per-participant presence.
package calls

import (
	"sync"

	"messenger-service/internal/models"
)

// State is the lifecycle phase of a call.
type State int

const (
	StateSetup State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateActive:
		return "active"
	default:
		return "ended"
	}
}

// StateOf derives the phase from the stored flags. Teardown is tracked separately.
func StateOf(call models.Call) State {
	if call.CallEnded != nil {
		return StateEnded
	}
	if !call.SetupComplete {
		return StateSetup
	}
	return StateActive
}

// ParticipantLookup finds the actor's call participant, or nil when they never joined.
type ParticipantLookup func() (*models.CallParticipant, error)

// View answers read-only questions about a call for one actor. The actor's
// participant is looked up at most once per View.
type View struct {
	Call  models.Call
	Actor models.ProviderRef

	lookup  ParticipantLookup
	once    sync.Once
	current *models.CallParticipant
	err     error
}

func NewView(call models.Call, actor models.ProviderRef, lookup ParticipantLookup) *View {
	return &View{Call: call, Actor: actor, lookup: lookup}
}

// ViewOf builds a View over an already loaded participant list.
func ViewOf(call models.Call, actor models.ProviderRef, participants []models.CallParticipant) *View {
	return NewView(call, actor, func() (*models.CallParticipant, error) {
		for i := range participants {
			if participants[i].Owner().Equal(actor) {
				p := participants[i]
				return &p, nil
			}
		}
		return nil, nil
	})
}

// Load runs the participant lookup once. A lookup error is kept and returned
// on every later call, and the View then reports no participant.
func (v *View) Load() error {
	v.once.Do(func() {
		if v.lookup == nil {
			return
		}
		v.current, v.err = v.lookup()
		if v.err != nil {
			v.current = nil
		}
	})
	return v.err
}

// CurrentParticipant returns the actor's participant record, memoized. Callers
// that act on the answer must check Load first.
func (v *View) CurrentParticipant() *models.CallParticipant {
	_ = v.Load()
	return v.current
}

func (v *View) State() State {
	return StateOf(v.Call)
}

// IsActive is true until call_ended is stamped.
func (v *View) IsActive() bool {
	return v.Call.CallEnded == nil
}

func (v *View) HasEnded() bool {
	return v.Call.CallEnded != nil
}

func (v *View) IsSetup() bool {
	return v.Call.SetupComplete
}

func (v *View) IsTornDown() bool {
	return v.Call.TeardownComplete
}

func (v *View) IsVideoCall() bool {
	return v.Call.IsVideoCall()
}

func (v *View) HasJoinedCall() bool {
	return v.CurrentParticipant() != nil
}

func (v *View) WasKicked() bool {
	p := v.CurrentParticipant()
	return p != nil && p.Kicked
}

// IsInCall is true while the call runs and the actor neither left nor was kicked.
func (v *View) IsInCall() bool {
	if !v.IsActive() {
		return false
	}
	p := v.CurrentParticipant()
	return p != nil && p.LeftCall == nil && !p.Kicked
}

func (v *View) HasLeftCall() bool {
	if !v.IsActive() {
		return false
	}
	p := v.CurrentParticipant()
	return p != nil && (p.LeftCall != nil || p.Kicked)
}

// IsCallAdmin is true for the call owner or a thread admin, but only for a
// participant of a call that has not ended.
func (v *View) IsCallAdmin(threadAdmin bool) bool {
	if v.HasEnded() || v.CurrentParticipant() == nil {
		return false
	}
	if v.Call.Owner().Equal(v.Actor) {
		return true
	}
	return threadAdmin
}
