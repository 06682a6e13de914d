package push

// Name is a plain broadcast name.
type Name string

func (n Name) BroadcastAs() string {
	return string(n)
}

const (
	NewMessage        Name = "new.message"
	MessageEdited     Name = "message.edited"
	MessageArchived   Name = "message.archived"
	ReactionAdded     Name = "reaction.added"
	ReactionRemoved   Name = "reaction.removed"
	ParticipantsAdded Name = "thread.participants.added"
	CallStarted       Name = "incoming.call"
	CallEnded         Name = "call.ended"
	KickedFromCall    Name = "call.kicked"
)
