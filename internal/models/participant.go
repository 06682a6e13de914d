package models

import "time"

// Participant links a provider to a thread.
type Participant struct {
	ID              string     `db:"id" json:"id"`
	ThreadID        string     `db:"thread_id" json:"thread_id"`
	OwnerType       string     `db:"owner_type" json:"owner_type"`
	OwnerID         string     `db:"owner_id" json:"owner_id"`
	Admin           bool       `db:"admin" json:"admin"`
	Muted           bool       `db:"muted" json:"muted"`
	Pending         bool       `db:"pending" json:"pending"`
	SendMessages    bool       `db:"send_messages" json:"send_messages"`
	SendKnocks      bool       `db:"send_knocks" json:"send_knocks"`
	AddParticipants bool       `db:"add_participants" json:"add_participants"`
	ManageInvites   bool       `db:"manage_invites" json:"manage_invites"`
	StartCalls      bool       `db:"start_calls" json:"start_calls"`
	LastRead        *time.Time `db:"last_read" json:"last_read,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

func (p Participant) Owner() ProviderRef {
	return ProviderRef{Type: p.OwnerType, ID: p.OwnerID}
}

// IsRemoved reports whether the participant left or was removed from the thread.
func (p Participant) IsRemoved() bool {
	return p.DeletedAt != nil
}
