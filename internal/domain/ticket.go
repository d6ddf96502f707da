package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAssigned TicketStatus = "assigned"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusClosed:
		return true
	}
	return false
}

var (
	ErrTicketClosed   = errors.New("ticket is closed")
	ErrClaimConflict  = errors.New("ticket already claimed by another moderator")
	ErrEmptyMessage   = errors.New("message has neither text nor attachment")
	ErrInvalidMessage = errors.New("invalid message sender")
)

// System notices appended on lifecycle transitions.
const (
	NoticeCreated = "Ticket created. Please wait for a moderator…"
	NoticeClosed  = "Ticket closed."
)

// ClaimNotice is the system text recorded when a moderator claims a ticket.
func ClaimNotice(displayName string) string {
	return "Moderator " + displayName + " joined."
}

// Ticket is the aggregate for a single support conversation.
type Ticket struct {
	ID        string       `json:"id"`
	CreatedAt int64        `json:"createdAt"`
	Status    TicketStatus `json:"status"`
	ClaimedBy *string      `json:"claimedBy"`
	Messages  []Message    `json:"messages"`
}

// NewTicket builds an open ticket seeded with the creation notice.
func NewTicket(id string, now time.Time) *Ticket {
	ts := now.UnixMilli()
	return &Ticket{
		ID:        id,
		CreatedAt: ts,
		Status:    TicketStatusOpen,
		Messages:  []Message{SystemMessage(NoticeCreated, ts)},
	}
}

// Claim assigns the ticket to the moderator. The returned bool is false when
// the moderator already holds the ticket and nothing changed.
func (t *Ticket) Claim(mod Moderator, now time.Time) (Message, bool, error) {
	if t.Status == TicketStatusClosed {
		return Message{}, false, ErrTicketClosed
	}
	if t.ClaimedBy != nil {
		if *t.ClaimedBy != mod.ID {
			return Message{}, false, ErrClaimConflict
		}
		if t.Status == TicketStatusAssigned {
			return Message{}, false, nil
		}
	}
	id := mod.ID
	t.Status = TicketStatusAssigned
	t.ClaimedBy = &id
	msg := SystemMessage(ClaimNotice(mod.DisplayName), now.UnixMilli())
	t.Messages = append(t.Messages, msg)
	return msg, true, nil
}

// Close moves the ticket to its terminal state. Closing a closed ticket is a
// no-op and reports false.
func (t *Ticket) Close(now time.Time) (Message, bool) {
	if t.Status == TicketStatusClosed {
		return Message{}, false
	}
	t.Status = TicketStatusClosed
	msg := SystemMessage(NoticeClosed, now.UnixMilli())
	t.Messages = append(t.Messages, msg)
	return msg, true
}

// Append adds a participant message to the log.
func (t *Ticket) Append(msg Message) error {
	if t.Status == TicketStatusClosed {
		return ErrTicketClosed
	}
	if msg.Sender != SenderUser && msg.Sender != SenderModerator {
		return ErrInvalidMessage
	}
	if msg.Empty() {
		return ErrEmptyMessage
	}
	t.Messages = append(t.Messages, msg)
	return nil
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (t *Ticket) Clone() Ticket {
	out := *t
	if t.ClaimedBy != nil {
		id := *t.ClaimedBy
		out.ClaimedBy = &id
	}
	out.Messages = make([]Message, len(t.Messages))
	for i, m := range t.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// Summary projects the ticket for list views; message bodies are never included.
func (t *Ticket) Summary() TicketSummary {
	s := TicketSummary{ID: t.ID, CreatedAt: t.CreatedAt, Status: t.Status}
	if t.ClaimedBy != nil {
		id := *t.ClaimedBy
		s.ClaimedBy = &id
	}
	return s
}

// TicketSummary is the queue view of a ticket.
type TicketSummary struct {
	ID        string       `json:"id"`
	CreatedAt int64        `json:"createdAt"`
	Status    TicketStatus `json:"status"`
	ClaimedBy *string      `json:"claimedBy"`
}
