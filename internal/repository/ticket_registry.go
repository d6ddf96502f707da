package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/support-relay/relay/internal/domain"
)

// TicketRegistry is the authoritative in-memory map of tickets. All state
// transitions run under its lock; callers only ever see cloned copies.
type TicketRegistry struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewTicketRegistry instantiates an empty registry.
func NewTicketRegistry() *TicketRegistry {
	return &TicketRegistry{tickets: make(map[string]*domain.Ticket)}
}

// Load replaces the registry contents with persisted tickets.
func (r *TicketRegistry) Load(tickets []domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = make(map[string]*domain.Ticket, len(tickets))
	for i := range tickets {
		t := tickets[i].Clone()
		if t.ID == "" {
			continue
		}
		r.tickets[t.ID] = &t
	}
}

// Insert adds a freshly created ticket.
func (r *TicketRegistry) Insert(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := ticket.Clone()
	r.tickets[t.ID] = &t
}

// Exists reports whether the id resolves to a known ticket.
func (r *TicketRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tickets[id]
	return ok
}

// Get returns a copy of the ticket.
func (r *TicketRegistry) Get(id string) (domain.Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return domain.Ticket{}, false
	}
	return t.Clone(), true
}

// Claim applies the claim transition. ErrNotFound is returned for unknown ids.
func (r *TicketRegistry) Claim(id string, mod domain.Moderator, now time.Time) (domain.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return domain.Message{}, false, ErrNotFound
	}
	return t.Claim(mod, now)
}

// Close applies the close transition.
func (r *TicketRegistry) Close(id string, now time.Time) (domain.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return domain.Message{}, false, ErrNotFound
	}
	msg, changed := t.Close(now)
	return msg, changed, nil
}

// Append adds a participant message to the ticket's log.
func (r *TicketRegistry) Append(id string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return ErrNotFound
	}
	return t.Append(msg)
}

// ListOpen returns non-closed tickets ordered by creation time.
func (r *TicketRegistry) ListOpen() []domain.TicketSummary {
	r.mu.RLock()
	out := make([]domain.TicketSummary, 0, len(r.tickets))
	for _, t := range r.tickets {
		if t.Status == domain.TicketStatusClosed {
			continue
		}
		out = append(out, t.Summary())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// Snapshot returns copies of the named tickets, skipping unknown ids.
func (r *TicketRegistry) Snapshot(ids []string) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.tickets[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// SnapshotAll returns copies of every ticket.
func (r *TicketRegistry) SnapshotAll() []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, t.Clone())
	}
	return out
}

// Len returns the number of tickets held.
func (r *TicketRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tickets)
}
