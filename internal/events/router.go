package events

import (
	"sync"
)

// Topic names a broadcast channel.
type Topic string

// ModeratorsTopic carries queue-wide notifications to every moderator.
const ModeratorsTopic Topic = "moderators"

// TicketTopic is the room for a single ticket's participants.
func TicketTopic(ticketID string) Topic {
	return Topic("ticket:" + ticketID)
}

// Subscriber receives events. Deliver must not block; it reports whether the
// event was accepted.
type Subscriber interface {
	ID() string
	Deliver(event Event) bool
}

// Router fans events out to the subscribers of a topic. Delivery is
// at-most-once to whoever is subscribed at publish time.
type Router struct {
	mu     sync.RWMutex
	topics map[Topic]map[string]Subscriber
	subs   map[string]map[Topic]struct{}
}

// NewRouter creates a router instance.
func NewRouter() *Router {
	return &Router{
		topics: make(map[Topic]map[string]Subscriber),
		subs:   make(map[string]map[Topic]struct{}),
	}
}

// Subscribe adds the subscriber to the topic. Subscribing twice is a no-op.
func (r *Router) Subscribe(topic Topic, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.topics[topic]
	if !ok {
		members = make(map[string]Subscriber)
		r.topics[topic] = members
	}
	members[sub.ID()] = sub

	joined, ok := r.subs[sub.ID()]
	if !ok {
		joined = make(map[Topic]struct{})
		r.subs[sub.ID()] = joined
	}
	joined[topic] = struct{}{}
}

// Unsubscribe removes the subscriber from one topic.
func (r *Router) Unsubscribe(topic Topic, subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(topic, subID)
	if joined, ok := r.subs[subID]; ok {
		delete(joined, topic)
		if len(joined) == 0 {
			delete(r.subs, subID)
		}
	}
}

// UnsubscribeAll drops every subscription held by the subscriber.
func (r *Router) UnsubscribeAll(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.subs[subID] {
		r.removeLocked(topic, subID)
	}
	delete(r.subs, subID)
}

func (r *Router) removeLocked(topic Topic, subID string) {
	members, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(members, subID)
	if len(members) == 0 {
		delete(r.topics, topic)
	}
}

// Publish delivers the event to the topic's current subscribers and returns
// how many accepted it.
func (r *Router) Publish(topic Topic, event Event) int {
	r.mu.RLock()
	members := make([]Subscriber, 0, len(r.topics[topic]))
	for _, sub := range r.topics[topic] {
		members = append(members, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Deliver(event) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers on a topic.
func (r *Router) Subscribers(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Topics returns the topics a subscriber is joined to.
func (r *Router) Topics(subID string) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Topic, 0, len(r.subs[subID]))
	for topic := range r.subs[subID] {
		out = append(out, topic)
	}
	return out
}
