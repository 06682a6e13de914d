package models

import "time"

const (
	MessageText     = 0
	MessageImage    = 1
	MessageDocument = 2
	MessageAudio    = 3

	MessageJoinedWithInvite  = 88
	MessageVideoCall         = 89
	MessageGroupAvatarChange = 90
	MessageThreadArchived    = 91
	MessageGroupCreated      = 92
	MessageGroupRenamed      = 93
	MessageDemotedAdmin      = 94
	MessagePromotedAdmin     = 95
	MessageParticipantLeft   = 96
	MessageRemovedFromGroup  = 97
	MessageParticipantsAdded = 98
)

// Message belongs to exactly one thread.
type Message struct {
	ID        string     `db:"id" json:"id"`
	ThreadID  string     `db:"thread_id" json:"thread_id"`
	OwnerType string     `db:"owner_type" json:"owner_type"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	Type      int        `db:"type" json:"type"`
	Body      string     `db:"body" json:"body"`
	ReplyToID *string    `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Edited    bool       `db:"edited" json:"edited"`
	Reacted   bool       `db:"reacted" json:"reacted"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

func (m Message) Owner() ProviderRef {
	return ProviderRef{Type: m.OwnerType, ID: m.OwnerID}
}

func (m Message) IsText() bool {
	return m.Type == MessageText
}

// IsSystemMessage reports whether the message was generated by the service.
func (m Message) IsSystemMessage() bool {
	switch m.Type {
	case MessageText, MessageImage, MessageDocument, MessageAudio:
		return false
	}
	return true
}

func (m Message) IsEdited() bool {
	return m.Edited
}

// MessageEdit stores a previous body of an edited message.
type MessageEdit struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	Body      string    `db:"body" json:"body"`
	EditedAt  time.Time `db:"edited_at" json:"edited_at"`
}
