package policy

import (
	"messenger-service/internal/access"
	"messenger-service/internal/calls"
	"messenger-service/internal/models"
)

const (
	ReasonViewCalls    = "Not authorized to view calls."
	ReasonStartCall    = "Not authorized to start a call."
	ReasonJoinCall     = "Not authorized to join that call."
	ReasonLeaveCall    = "Not authorized to leave that call."
	ReasonEndCall      = "Not authorized to end that call."
	ReasonKickFromCall = "Not authorized to kick that participant."
)

// CallPolicy authorizes call actions.
type CallPolicy struct{}

func NewCallPolicy() CallPolicy {
	return CallPolicy{}
}

func (CallPolicy) ViewAny(a *access.ThreadAccess) Decision {
	return check(a.HasCurrentProvider(), ReasonViewCalls)
}

func (CallPolicy) View(a *access.ThreadAccess, call models.Call) Decision {
	return check(a.HasCurrentProvider() && call.ThreadID == a.Thread.ID, ReasonViewCalls)
}

// Create requires calling rights and no call already running in the thread.
func (CallPolicy) Create(a *access.ThreadAccess, hasActiveCall bool) Decision {
	return check(a.CanCall() && !hasActiveCall, ReasonStartCall)
}

func (CallPolicy) Join(a *access.ThreadAccess, v *calls.View) Decision {
	return check(v.IsActive() && a.CanCall() && !v.WasKicked(), ReasonJoinCall)
}

func (CallPolicy) Leave(v *calls.View) Decision {
	return check(v.IsInCall(), ReasonLeaveCall)
}

func (CallPolicy) End(a *access.ThreadAccess, v *calls.View) Decision {
	return check(v.IsActive() && v.IsCallAdmin(a.IsAdmin()), ReasonEndCall)
}

// Kick lets a call admin remove anyone but the call owner.
func (CallPolicy) Kick(a *access.ThreadAccess, v *calls.View, target models.CallParticipant) Decision {
	return check(v.IsActive() &&
		v.IsCallAdmin(a.IsAdmin()) &&
		target.CallID == v.Call.ID &&
		!target.Owner().Equal(v.Call.Owner()) &&
		!target.Kicked, ReasonKickFromCall)
}
