package models

import "time"

const (
	CallVideo = 1
	CallAudio = 2
)

// Call belongs to one thread. It is active while CallEnded is nil.
type Call struct {
	ID               string     `db:"id" json:"id"`
	ThreadID         string     `db:"thread_id" json:"thread_id"`
	OwnerType        string     `db:"owner_type" json:"owner_type"`
	OwnerID          string     `db:"owner_id" json:"owner_id"`
	Type             int        `db:"type" json:"type"`
	RoomID           *string    `db:"room_id" json:"-"`
	RoomPin          *string    `db:"room_pin" json:"-"`
	RoomSecret       *string    `db:"room_secret" json:"-"`
	Payload          *string    `db:"payload" json:"-"`
	SetupComplete    bool       `db:"setup_complete" json:"setup_complete"`
	TeardownComplete bool       `db:"teardown_complete" json:"teardown_complete"`
	CallEnded        *time.Time `db:"call_ended" json:"call_ended,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (c Call) Owner() ProviderRef {
	return ProviderRef{Type: c.OwnerType, ID: c.OwnerID}
}

func (c Call) IsVideoCall() bool {
	return c.Type == CallVideo
}

// CallParticipant tracks one provider's presence in a call.
type CallParticipant struct {
	ID        string     `db:"id" json:"id"`
	CallID    string     `db:"call_id" json:"call_id"`
	OwnerType string     `db:"owner_type" json:"owner_type"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	LeftCall  *time.Time `db:"left_call" json:"left_call,omitempty"`
	Kicked    bool       `db:"kicked" json:"kicked"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

func (p CallParticipant) Owner() ProviderRef {
	return ProviderRef{Type: p.OwnerType, ID: p.OwnerID}
}
