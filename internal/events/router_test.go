package events

import (
	"sync"
	"testing"
)

type fakeSub struct {
	id     string
	full   bool
	mu     sync.Mutex
	events []Event
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Deliver(e Event) bool {
	if f.full {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return true
}

func (f *fakeSub) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func TestPublishReachesOnlyTopicSubscribers(t *testing.T) {
	r := NewRouter()
	a := &fakeSub{id: "a"}
	b := &fakeSub{id: "b"}
	r.Subscribe(TicketTopic("t1"), a)
	r.Subscribe(TicketTopic("t2"), b)

	n := r.Publish(TicketTopic("t1"), Event{Name: EventMessage})
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(a.received()) != 1 || len(b.received()) != 0 {
		t.Fatalf("unexpected fan-out a=%d b=%d", len(a.received()), len(b.received()))
	}
}

func TestPublishToEmptyTopicIsNoop(t *testing.T) {
	r := NewRouter()
	if n := r.Publish(ModeratorsTopic, Event{Name: EventTicketNew}); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}

func TestFullSubscriberIsSkipped(t *testing.T) {
	r := NewRouter()
	slow := &fakeSub{id: "slow", full: true}
	fast := &fakeSub{id: "fast"}
	r.Subscribe(ModeratorsTopic, slow)
	r.Subscribe(ModeratorsTopic, fast)

	if n := r.Publish(ModeratorsTopic, Event{Name: EventTicketNew}); n != 1 {
		t.Fatalf("expected 1 accepted delivery, got %d", n)
	}
}

func TestUnsubscribeAllDropsEveryTopic(t *testing.T) {
	r := NewRouter()
	mod := &fakeSub{id: "mod"}
	r.Subscribe(ModeratorsTopic, mod)
	r.Subscribe(TicketTopic("t1"), mod)
	r.Subscribe(TicketTopic("t2"), mod)
	if got := len(r.Topics("mod")); got != 3 {
		t.Fatalf("expected 3 topics, got %d", got)
	}

	r.UnsubscribeAll("mod")
	if r.Subscribers(ModeratorsTopic) != 0 || r.Subscribers(TicketTopic("t1")) != 0 {
		t.Fatalf("subscriptions survived disconnect")
	}
	if len(r.Topics("mod")) != 0 {
		t.Fatalf("expected no topics after disconnect")
	}
	r.Publish(TicketTopic("t1"), Event{Name: EventMessage})
	if len(mod.received()) != 0 {
		t.Fatalf("disconnected subscriber received an event")
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	r := NewRouter()
	s := &fakeSub{id: "s"}
	r.Subscribe(ModeratorsTopic, s)
	r.Subscribe(ModeratorsTopic, s)
	r.Publish(ModeratorsTopic, Event{Name: EventTicketUpdated})
	if got := len(s.received()); got != 1 {
		t.Fatalf("expected a single delivery, got %d", got)
	}
	r.Unsubscribe(ModeratorsTopic, "s")
	if r.Subscribers(ModeratorsTopic) != 0 {
		t.Fatalf("expected topic to be empty")
	}
}
