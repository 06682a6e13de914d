package policy

import (
	"messenger-service/internal/access"
	"messenger-service/internal/config"
	"messenger-service/internal/models"
)

const (
	ReasonViewMessages   = "Not authorized to view messages."
	ReasonViewMessage    = "Not authorized to view message."
	ReasonViewEdits      = "Not authorized to view edits for that message."
	ReasonSendMessages   = "Not authorized to send messages."
	ReasonUploadDocument = "Not authorized to upload a document."
	ReasonUploadAudio    = "Not authorized to upload audio."
	ReasonUploadImage    = "Not authorized to upload image."
	ReasonUpdateMessage  = "Not authorized to update message."
	ReasonRemoveMessage  = "Not authorized to remove message."
)

// MessagePolicy authorizes message actions.
type MessagePolicy struct {
	features config.Features
}

func NewMessagePolicy(features config.Features) MessagePolicy {
	return MessagePolicy{features: features}
}

func (p MessagePolicy) ViewAny(a *access.ThreadAccess) Decision {
	return check(a.HasCurrentProvider(), ReasonViewMessages)
}

func (p MessagePolicy) View(a *access.ThreadAccess, msg models.Message) Decision {
	return check(a.HasCurrentProvider() && msg.ThreadID == a.Thread.ID, ReasonViewMessage)
}

func (p MessagePolicy) ViewEdits(a *access.ThreadAccess, msg models.Message) Decision {
	return check(p.features.MessageEdits &&
		p.features.MessageEditsView &&
		a.HasCurrentProvider() &&
		msg.ThreadID == a.Thread.ID &&
		msg.IsEdited(), ReasonViewEdits)
}

func (p MessagePolicy) Create(a *access.ThreadAccess) Decision {
	return check(a.CanMessage(), ReasonSendMessages)
}

func (p MessagePolicy) CreateDocument(a *access.ThreadAccess) Decision {
	return check(p.features.DocumentUploads && a.CanMessage(), ReasonUploadDocument)
}

func (p MessagePolicy) CreateAudio(a *access.ThreadAccess) Decision {
	return check(p.features.AudioUploads && a.CanMessage(), ReasonUploadAudio)
}

func (p MessagePolicy) CreateImage(a *access.ThreadAccess) Decision {
	return check(p.features.ImageUploads && a.CanMessage(), ReasonUploadImage)
}

// Update allows the owner to edit a text message while edits are enabled.
func (p MessagePolicy) Update(a *access.ThreadAccess, msg models.Message) Decision {
	return check(!a.IsLocked() &&
		msg.IsText() &&
		p.features.MessageEdits &&
		msg.Owner().Equal(a.Actor), ReasonUpdateMessage)
}

// Delete allows the owner or a group admin to remove a non system message.
func (p MessagePolicy) Delete(a *access.ThreadAccess, msg models.Message) Decision {
	return check(!a.IsLocked() &&
		!msg.IsSystemMessage() &&
		(msg.Owner().Equal(a.Actor) || a.IsAdmin()), ReasonRemoveMessage)
}
