package repository

import (
	"sort"
	"sync"

	"github.com/support-relay/relay/internal/domain"
)

// ModeratorDirectory maps moderator ids to identities for display-name
// resolution. It is not an authority for credentials.
type ModeratorDirectory struct {
	mu         sync.RWMutex
	moderators map[string]domain.Moderator
}

// NewModeratorDirectory instantiates an empty directory.
func NewModeratorDirectory() *ModeratorDirectory {
	return &ModeratorDirectory{moderators: make(map[string]domain.Moderator)}
}

// Load replaces the directory contents, skipping incomplete records.
func (d *ModeratorDirectory) Load(mods []domain.Moderator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moderators = make(map[string]domain.Moderator, len(mods))
	for _, m := range mods {
		if m.ID == "" || m.DisplayName == "" {
			continue
		}
		d.moderators[m.ID] = m
	}
}

// Register stores the identity, replacing any previous record with the same id.
func (d *ModeratorDirectory) Register(mod domain.Moderator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moderators[mod.ID] = mod
}

// GetByID looks up a moderator.
func (d *ModeratorDirectory) GetByID(id string) (domain.Moderator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.moderators[id]
	return m, ok
}

// DisplayName resolves an id to a name, or nil when unknown.
func (d *ModeratorDirectory) DisplayName(id *string) *string {
	if id == nil {
		return nil
	}
	m, ok := d.GetByID(*id)
	if !ok {
		return nil
	}
	name := m.DisplayName
	return &name
}

// All returns every identity ordered by id.
func (d *ModeratorDirectory) All() []domain.Moderator {
	d.mu.RLock()
	out := make([]domain.Moderator, 0, len(d.moderators))
	for _, m := range d.moderators {
		out = append(out, m)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
