package policy

import (
	"messenger-service/internal/access"
	"messenger-service/internal/config"
	"messenger-service/internal/models"
)

const (
	ReasonReact          = "Not authorized to react to message."
	ReasonRemoveReaction = "Not authorized to remove reaction."
)

// ReactionPolicy authorizes message reaction actions.
type ReactionPolicy struct {
	features config.Features
}

func NewReactionPolicy(features config.Features) ReactionPolicy {
	return ReactionPolicy{features: features}
}

func (p ReactionPolicy) ViewAny(a *access.ThreadAccess) Decision {
	return check(a.HasCurrentProvider(), ReasonViewMessages)
}

func (p ReactionPolicy) Create(a *access.ThreadAccess, msg models.Message) Decision {
	return check(p.features.Reactions &&
		!msg.IsSystemMessage() &&
		a.CanMessage(), ReasonReact)
}

func (p ReactionPolicy) Delete(a *access.ThreadAccess, reaction models.MessageReaction) Decision {
	return check(!a.IsLocked() &&
		(reaction.Owner().Equal(a.Actor) || a.IsAdmin()), ReasonRemoveReaction)
}
