package models

import "time"

// MessageReaction is a single emoji reaction. Duplicates per owner are allowed.
type MessageReaction struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	OwnerType string    `db:"owner_type" json:"owner_type"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Reaction  string    `db:"reaction" json:"reaction"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (r MessageReaction) Owner() ProviderRef {
	return ProviderRef{Type: r.OwnerType, ID: r.OwnerID}
}

// GroupReactions aggregates reactions by emoji, keeping first-seen order within each group.
func GroupReactions(reactions []MessageReaction) map[string][]MessageReaction {
	grouped := make(map[string][]MessageReaction)
	for _, r := range reactions {
		grouped[r.Reaction] = append(grouped[r.Reaction], r)
	}
	return grouped
}
