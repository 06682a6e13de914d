package providers

import (
	"context"
	"errors"
	"sort"

	"messenger-service/internal/config"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// Definition describes one registered provider type.
type Definition struct {
	Alias         string
	Devices       bool
	DefaultAvatar string
}

// Directory maps provider aliases to their settings and resolves references to identities.
type Directory struct {
	defs  map[string]Definition
	store repositories.ProviderRepository
}

func NewDirectory(defs []Definition, store repositories.ProviderRepository) *Directory {
	d := &Directory{defs: make(map[string]Definition, len(defs)), store: store}
	for _, def := range defs {
		d.defs[def.Alias] = def
	}
	return d
}

// FromConfig builds definitions from the providers config section.
func FromConfig(providers map[string]config.Provider) []Definition {
	defs := make([]Definition, 0, len(providers))
	for alias, p := range providers {
		defs = append(defs, Definition{
			Alias:         alias,
			Devices:       p.Devices,
			DefaultAvatar: p.DefaultAvatar,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Alias < defs[j].Alias })
	return defs
}

func (d *Directory) Definition(alias string) (Definition, bool) {
	def, ok := d.defs[alias]
	return def, ok
}

func (d *Directory) IsRegistered(alias string) bool {
	_, ok := d.Definition(alias)
	return ok
}

// IsDeviceNotifiable reports whether push notifications may target the alias.
func (d *Directory) IsDeviceNotifiable(alias string) bool {
	def, ok := d.Definition(alias)
	return ok && def.Devices
}

func (d *Directory) Aliases() []string {
	aliases := make([]string, 0, len(d.defs))
	for alias := range d.defs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Find looks up a registered provider. The bool is false when the alias is unknown
// or no identity exists for the id.
func (d *Directory) Find(ctx context.Context, ref models.ProviderRef) (models.Provider, bool, error) {
	if ref.IsZero() || !d.IsRegistered(ref.Type) {
		return models.Provider{}, false, nil
	}
	provider, err := d.store.Find(ctx, ref)
	if errors.Is(err, repositories.ErrProviderNotFound) {
		return models.Provider{}, false, nil
	}
	if err != nil {
		return models.Provider{}, false, err
	}
	d.applyDefaults(&provider)
	return provider, true, nil
}

// Resolve returns the provider for ref, falling back to the ghost provider.
func (d *Directory) Resolve(ctx context.Context, ref models.ProviderRef) (models.Provider, error) {
	provider, ok, err := d.Find(ctx, ref)
	if err != nil {
		return models.Provider{}, err
	}
	if !ok {
		return models.Ghost(), nil
	}
	return provider, nil
}

// ResolveMany resolves refs in order. Unresolved entries become ghosts.
func (d *Directory) ResolveMany(ctx context.Context, refs []models.ProviderRef) ([]models.Provider, error) {
	lookup := make([]models.ProviderRef, 0, len(refs))
	for _, ref := range refs {
		if !ref.IsZero() && d.IsRegistered(ref.Type) {
			lookup = append(lookup, ref)
		}
	}

	found, err := d.store.FindMany(ctx, lookup)
	if err != nil {
		return nil, err
	}
	byRef := make(map[models.ProviderRef]models.Provider, len(found))
	for _, p := range found {
		d.applyDefaults(&p)
		byRef[p.Owner()] = p
	}

	resolved := make([]models.Provider, 0, len(refs))
	for _, ref := range refs {
		if p, ok := byRef[ref]; ok {
			resolved = append(resolved, p)
			continue
		}
		resolved = append(resolved, models.Ghost())
	}
	return resolved, nil
}

func (d *Directory) applyDefaults(p *models.Provider) {
	if p.Avatar != nil && *p.Avatar != "" {
		return
	}
	if def, ok := d.defs[p.Type]; ok && def.DefaultAvatar != "" {
		avatar := def.DefaultAvatar
		p.Avatar = &avatar
	}
}
