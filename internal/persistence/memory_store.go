package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/support-relay/relay/internal/domain"
)

// MemoryStore is an in-process Backend. Records are JSON-encoded on write so
// reads observe the same round trip as the durable backends. It counts
// physical writes for coalescing checks.
type MemoryStore struct {
	mu         sync.Mutex
	tickets    map[string][]byte
	moderators []byte

	ticketBatches    int
	ticketWrites     int
	moderatorBatches int
	failNext         error
	failTickets      map[string]error
}

// NewMemoryStore instantiates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:     make(map[string][]byte),
		failTickets: make(map[string]error),
	}
}

func (s *MemoryStore) LoadTickets(_ context.Context) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tickets))
	for id := range s.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		var t domain.Ticket
		if err := json.Unmarshal(s.tickets[id], &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) SaveTickets(_ context.Context, tickets []domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.ticketBatches++
	var errs []error
	for i := range tickets {
		if err, ok := s.failTickets[tickets[i].ID]; ok {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: err})
			continue
		}
		raw, err := json.Marshal(tickets[i])
		if err != nil {
			errs = append(errs, &RecordError{ID: tickets[i].ID, Err: err})
			continue
		}
		s.tickets[tickets[i].ID] = raw
		s.ticketWrites++
	}
	return errors.Join(errs...)
}

func (s *MemoryStore) LoadModerators(_ context.Context) ([]domain.Moderator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moderators == nil {
		return nil, nil
	}
	var mods []domain.Moderator
	if err := json.Unmarshal(s.moderators, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

func (s *MemoryStore) SaveModerators(_ context.Context, moderators []domain.Moderator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	raw, err := json.Marshal(moderators)
	if err != nil {
		return err
	}
	s.moderators = raw
	s.moderatorBatches++
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// FailNextWrite makes the next save return err.
func (s *MemoryStore) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// FailTicket makes every write of ticket id fail with err until cleared with a nil err.
func (s *MemoryStore) FailTicket(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failTickets, id)
		return
	}
	s.failTickets[id] = err
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// Ticket returns the stored record for id.
func (s *MemoryStore) Ticket(id string) (domain.Ticket, bool) {
	s.mu.Lock()
	raw, ok := s.tickets[id]
	s.mu.Unlock()
	if !ok {
		return domain.Ticket{}, false
	}
	var t domain.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Ticket{}, false
	}
	return t, true
}

// Stats reports how many batches and individual records have been written.
func (s *MemoryStore) Stats() (ticketBatches, ticketWrites, moderatorBatches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketBatches, s.ticketWrites, s.moderatorBatches
}
