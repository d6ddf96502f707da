package service

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/events"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/repository"
)

type recorder struct {
	id     string
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(e events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recorder) names() []events.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventName, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	tickets    *repository.TicketRegistry
	moderators *repository.ModeratorDirectory
	store      *persistence.MemoryStore
	flusher    *persistence.Flusher
	router     *events.Router
	clock      clockwork.FakeClock
	svc        *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		tickets:    repository.NewTicketRegistry(),
		moderators: repository.NewModeratorDirectory(),
		store:      persistence.NewMemoryStore(),
		router:     events.NewRouter(),
		clock:      clockwork.NewFakeClock(),
	}
	fx.flusher = persistence.NewFlusher(persistence.FlusherDependencies{
		Backend:    fx.store,
		Tickets:    fx.tickets,
		Moderators: fx.moderators,
		Clock:      fx.clock,
		Logger:     zap.NewNop(),
	})
	fx.svc = NewTicketService(TicketDependencies{
		Tickets:    fx.tickets,
		Moderators: fx.moderators,
		Scheduler:  fx.flusher,
		Router:     fx.router,
		Clock:      fx.clock,
		Logger:     zap.NewNop(),
	})
	return fx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func equalNames(got []events.EventName, want ...events.EventName) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
