package models

import "time"

const (
	ThreadPrivate = 1
	ThreadGroup   = 2
)

// Thread is a private or group conversation.
type Thread struct {
	ID              string     `db:"id" json:"id"`
	Type            int        `db:"type" json:"type"`
	Subject         *string    `db:"subject" json:"subject,omitempty"`
	Image           *string    `db:"image" json:"image,omitempty"`
	AddParticipants bool       `db:"add_participants" json:"add_participants"`
	Invitations     bool       `db:"invitations" json:"invitations"`
	Calling         bool       `db:"calling" json:"calling"`
	Messaging       bool       `db:"messaging" json:"messaging"`
	Knocks          bool       `db:"knocks" json:"knocks"`
	Lockout         bool       `db:"lockout" json:"lockout"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

func (t Thread) IsPrivate() bool {
	return t.Type == ThreadPrivate
}

func (t Thread) IsGroup() bool {
	return t.Type == ThreadGroup
}

// IsArchived reports whether the thread has been soft deleted.
func (t Thread) IsArchived() bool {
	return t.DeletedAt != nil
}

// TypeVerbose mirrors the type names exposed by the API.
func (t Thread) TypeVerbose() string {
	if t.IsGroup() {
		return "GROUP"
	}
	return "PRIVATE"
}
