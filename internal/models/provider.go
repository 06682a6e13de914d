package models

import "time"

const (
	// GhostType is the owner type used when a provider reference no longer resolves.
	GhostType = "ghost"
	// GhostID is the fixed identifier of the ghost provider.
	GhostID = "12345678-1234-5678-9123-123456789874"
)

// ProviderRef is a polymorphic reference to any registered provider type.
type ProviderRef struct {
	Type string `db:"owner_type" json:"owner_type"`
	ID   string `db:"owner_id" json:"owner_id"`
}

// Ref builds a ProviderRef.
func Ref(providerType, id string) ProviderRef {
	return ProviderRef{Type: providerType, ID: id}
}

// Owner lets a bare reference stand in wherever an owned record is expected.
func (r ProviderRef) Owner() ProviderRef {
	return r
}

func (r ProviderRef) IsZero() bool {
	return r.Type == "" || r.ID == ""
}

func (r ProviderRef) Equal(other ProviderRef) bool {
	return r.Type == other.Type && r.ID == other.ID
}

func (r ProviderRef) String() string {
	return r.Type + ":" + r.ID
}

// Provider is a resolved identity.
type Provider struct {
	Type       string     `db:"owner_type" json:"provider_alias"`
	ID         string     `db:"owner_id" json:"provider_id"`
	Name       string     `db:"name" json:"name"`
	Avatar     *string    `db:"avatar" json:"avatar,omitempty"`
	LastActive *time.Time `db:"last_active" json:"last_active,omitempty"`
}

func (p Provider) Owner() ProviderRef {
	return ProviderRef{Type: p.Type, ID: p.ID}
}

func (p Provider) IsGhost() bool {
	return p.Type == GhostType
}

// Ghost returns the placeholder provider for unresolved owners.
func Ghost() Provider {
	return Provider{Type: GhostType, ID: GhostID, Name: "Ghost Profile"}
}
