package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/events"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/repository"
	apperrors "github.com/support-relay/relay/pkg/util"
)

// TicketService coordinates ticket workflows. Every mutation runs
// registry update, persistence scheduling and publish under one lock so a
// ticket's log order and broadcast order agree.
type TicketService struct {
	tickets    *repository.TicketRegistry
	moderators *repository.ModeratorDirectory
	scheduler  persistence.Scheduler
	router     *events.Router
	clock      clockwork.Clock
	logger     *zap.Logger

	mu sync.Mutex
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets    *repository.TicketRegistry
	Moderators *repository.ModeratorDirectory
	Scheduler  persistence.Scheduler
	Router     *events.Router
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// PostMessageInput describes a participant message.
type PostMessageInput struct {
	TicketID   string
	Sender     domain.MessageSender
	Text       string
	Attachment *domain.Attachment
	By         string
}

// TicketStatusView is the public status projection of a ticket.
type TicketStatusView struct {
	ID            string              `json:"id"`
	Status        domain.TicketStatus `json:"status"`
	ClaimedByName *string             `json:"claimedByName"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.Tickets,
		moderators: deps.Moderators,
		scheduler:  deps.Scheduler,
		router:     deps.Router,
		clock:      clock,
		logger:     logger,
	}
}

// CreateTicket opens a new ticket and announces it to moderators.
func (s *TicketService) CreateTicket(ctx context.Context) (domain.TicketSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := domain.NewTicket(uuid.NewString(), s.clock.Now())
	s.tickets.Insert(ticket)
	s.scheduler.MarkTicket(ticket.ID)

	s.router.Publish(events.ModeratorsTopic, events.Event{
		Name:    events.EventTicketNew,
		Payload: events.TicketNewPayload{ID: ticket.ID, CreatedAt: ticket.CreatedAt},
	})
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID))
	return ticket.Summary(), nil
}

// ListOpenTickets returns non-closed tickets ordered by creation time.
func (s *TicketService) ListOpenTickets(ctx context.Context) []domain.TicketSummary {
	return s.tickets.ListOpen()
}

// Claim assigns the ticket to the moderator. Re-claiming a ticket the
// moderator already holds succeeds without side effects.
func (s *TicketService) Claim(ctx context.Context, ticketID string, mod domain.Moderator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, changed, err := s.tickets.Claim(ticketID, mod, s.clock.Now())
	if err != nil {
		return mapTicketError(ticketID, err)
	}
	if !changed {
		return nil
	}
	s.scheduler.MarkTicket(ticketID)

	topic := events.TicketTopic(ticketID)
	s.router.Publish(topic, events.Event{
		Name:    events.EventTicketClaimed,
		Payload: events.TicketClaimedPayload{TicketID: ticketID, By: mod.DisplayName, TS: msg.TS},
	})
	s.router.Publish(topic, events.NewMessageEvent(ticketID, msg))
	s.router.Publish(events.ModeratorsTopic, events.Event{
		Name:    events.EventTicketUpdated,
		Payload: events.TicketUpdatedPayload{ID: ticketID, Status: domain.TicketStatusAssigned},
	})
	s.logger.Info("ticket claimed", zap.String("ticket_id", ticketID), zap.String("moderator_id", mod.ID))
	return nil
}

// Close moves the ticket to its terminal state. Closing a closed ticket is a no-op.
func (s *TicketService) Close(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, changed, err := s.tickets.Close(ticketID, s.clock.Now())
	if err != nil {
		return mapTicketError(ticketID, err)
	}
	if !changed {
		return nil
	}
	s.scheduler.MarkTicket(ticketID)

	topic := events.TicketTopic(ticketID)
	s.router.Publish(topic, events.Event{
		Name:    events.EventTicketClosed,
		Payload: events.TicketClosedPayload{TicketID: ticketID, TS: msg.TS},
	})
	s.router.Publish(topic, events.NewMessageEvent(ticketID, msg))
	s.router.Publish(events.ModeratorsTopic, events.Event{
		Name:    events.EventTicketUpdated,
		Payload: events.TicketUpdatedPayload{ID: ticketID, Status: domain.TicketStatusClosed},
	})
	s.logger.Info("ticket closed", zap.String("ticket_id", ticketID))
	return nil
}

// PostMessage appends a participant message and broadcasts it to the ticket
// room. Unknown tickets, closed tickets and empty payloads are dropped
// silently; the return value reports whether the message was accepted.
func (s *TicketService) PostMessage(ctx context.Context, input PostMessageInput) bool {
	if input.TicketID == "" {
		return false
	}
	msg := domain.Message{
		Sender:     input.Sender,
		Text:       domain.TruncateText(input.Text),
		Attachment: domain.NormalizeAttachment(input.Attachment),
	}
	if input.Sender == domain.SenderModerator {
		msg.By = input.By
	}
	if msg.Empty() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.TS = s.clock.Now().UnixMilli()
	if err := s.tickets.Append(input.TicketID, msg); err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, domain.ErrTicketClosed) {
			s.logger.Warn("message rejected", zap.String("ticket_id", input.TicketID), zap.Error(err))
		}
		return false
	}
	s.scheduler.MarkTicket(input.TicketID)
	s.router.Publish(events.TicketTopic(input.TicketID), events.NewMessageEvent(input.TicketID, msg))
	return true
}

// GetStatus returns the ticket's status and claimant display name.
func (s *TicketService) GetStatus(ctx context.Context, ticketID string) (TicketStatusView, error) {
	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return TicketStatusView{}, apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
	}
	return TicketStatusView{
		ID:            ticket.ID,
		Status:        ticket.Status,
		ClaimedByName: s.moderators.DisplayName(ticket.ClaimedBy),
	}, nil
}

// Exists reports whether the ticket id resolves.
func (s *TicketService) Exists(ticketID string) bool {
	return s.tickets.Exists(ticketID)
}

// AttachVisitor subscribes a visitor connection to its ticket room and sends
// the current history. The subscription and the history snapshot happen
// under the mutation lock so no message is both missed and absent from history.
func (s *TicketService) AttachVisitor(sub events.Subscriber, ticketID string) error {
	return s.watch(sub, ticketID)
}

// WatchTicket subscribes a moderator connection to a ticket room in addition
// to any rooms it already observes.
func (s *TicketService) WatchTicket(sub events.Subscriber, ticketID string) error {
	return s.watch(sub, ticketID)
}

// WatchQueue subscribes a moderator connection to queue-wide notifications.
func (s *TicketService) WatchQueue(sub events.Subscriber) {
	s.router.Subscribe(events.ModeratorsTopic, sub)
}

func (s *TicketService) watch(sub events.Subscriber, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets.Get(ticketID)
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticketId": ticketID})
	}
	s.router.Subscribe(events.TicketTopic(ticketID), sub)
	sub.Deliver(events.Event{
		Name: events.EventTicketHistory,
		Payload: events.TicketHistoryPayload{
			TicketID:      ticket.ID,
			Status:        ticket.Status,
			ClaimedByName: s.moderators.DisplayName(ticket.ClaimedBy),
			Messages:      ticket.Messages,
		},
	})
	return nil
}

// Detach drops every subscription held by the connection. Appended messages stand.
func (s *TicketService) Detach(subID string) {
	s.router.UnsubscribeAll(subID)
}

func mapTicketError(ticketID string, err error) error {
	details := map[string]any{"ticketId": ticketID}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", details)
	case errors.Is(err, domain.ErrTicketClosed):
		return apperrors.NewAlreadyClosed(details)
	case errors.Is(err, domain.ErrClaimConflict):
		return apperrors.NewConflict("ticket already claimed", details)
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrInvalidMessage):
		return apperrors.NewValidationError(err.Error(), details)
	}
	return apperrors.MapError(err)
}
