package events

import (
	"github.com/support-relay/relay/internal/domain"
)

// EventName enumerates real-time event identifiers.
type EventName string

const (
	EventTicketNew      EventName = "ticket:new"
	EventTicketUpdated  EventName = "ticket:updated"
	EventTicketHistory  EventName = "ticket:history"
	EventTicketClaimed  EventName = "ticket:claimed"
	EventTicketClosed   EventName = "ticket:closed"
	EventMessage        EventName = "message"
	EventModeratorReady EventName = "moderator:ready"
	EventError          EventName = "error"
)

// Inbound event names sent by clients.
const (
	InboundModeratorJoin EventName = "mod:join"
	InboundMessage       EventName = "message"
)

// ErrInvalidTicket is the error payload sent before rejecting a visitor connection.
const ErrInvalidTicket = "INVALID_TICKET"

// Event is a single frame on the real-time channel.
type Event struct {
	Name    EventName `json:"event"`
	Payload any       `json:"data"`
}

// TicketNewPayload payload.
type TicketNewPayload struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	ID     string              `json:"id"`
	Status domain.TicketStatus `json:"status"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	TicketID string `json:"ticketId"`
	By       string `json:"by"`
	TS       int64  `json:"ts"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketID string `json:"ticketId"`
	TS       int64  `json:"ts"`
}

// MessagePayload is a message tagged with its ticket.
type MessagePayload struct {
	domain.Message
	TicketID string `json:"ticketId"`
}

// TicketHistoryPayload carries the full log plus current status.
type TicketHistoryPayload struct {
	TicketID      string              `json:"ticketId"`
	Status        domain.TicketStatus `json:"status"`
	ClaimedByName *string             `json:"claimedByName"`
	Messages      []domain.Message    `json:"messages"`
}

// ModeratorReadyPayload payload.
type ModeratorReadyPayload struct {
	DisplayName string `json:"displayName"`
}

// NewMessageEvent builds a message event for a ticket.
func NewMessageEvent(ticketID string, msg domain.Message) Event {
	return Event{Name: EventMessage, Payload: MessagePayload{Message: msg, TicketID: ticketID}}
}
