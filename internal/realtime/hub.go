package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/events"
	"github.com/support-relay/relay/internal/observability"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/service"
)

// ErrInvalidTicket rejects visitor connections bound to an unknown ticket.
var ErrInvalidTicket = errors.New(events.ErrInvalidTicket)

// Frame is the wire envelope for inbound and outbound events.
type Frame struct {
	Event events.EventName `json:"event"`
	Data  json.RawMessage  `json:"data,omitempty"`
}

type joinPayload struct {
	TicketID string `json:"ticketId"`
}

type messagePayload struct {
	TicketID   string             `json:"ticketId,omitempty"`
	Text       string             `json:"text,omitempty"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// HubDependencies bundles collaborators for the hub.
type HubDependencies struct {
	Tickets   *service.TicketService
	Verifier  auth.Verifier
	Flusher   *persistence.Flusher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	QueueSize int
}

// Hub binds connections to roles and dispatches their inbound events.
type Hub struct {
	tickets   *service.TicketService
	verifier  auth.Verifier
	flusher   *persistence.Flusher
	logger    *zap.Logger
	metrics   *observability.Metrics
	queueSize int
}

// NewHub constructs a hub.
func NewHub(deps HubDependencies) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		tickets:   deps.Tickets,
		verifier:  deps.Verifier,
		flusher:   deps.Flusher,
		logger:    logger,
		metrics:   deps.Metrics,
		queueSize: deps.QueueSize,
	}
}

// ConnectVisitor binds a visitor connection to its ticket and queues the
// ticket history. For an unknown ticket the returned connection is already
// closed with a single INVALID_TICKET error event queued for the transport.
func (h *Hub) ConnectVisitor(ticketID string) (*Conn, error) {
	conn := newConn(RoleVisitor, h.queueSize)
	conn.ticketID = ticketID

	if ticketID == "" || h.tickets.AttachVisitor(conn, ticketID) != nil {
		conn.Deliver(events.Event{Name: events.EventError, Payload: events.ErrInvalidTicket})
		conn.Close()
		h.logger.Debug("visitor rejected", zap.String("ticket_id", ticketID))
		return conn, ErrInvalidTicket
	}

	conn.counted.Store(true)
	h.metrics.RecordConnection(string(RoleVisitor), 1)
	h.logger.Debug("visitor connected", zap.String("conn_id", conn.ID()), zap.String("ticket_id", ticketID))
	return conn, nil
}

// ConnectModerator authenticates the token and subscribes the connection to
// the queue topic. Authentication failures return no connection.
func (h *Hub) ConnectModerator(ctx context.Context, token string) (*Conn, error) {
	principal, err := h.verifier.Verify(ctx, token)
	if err != nil {
		h.logger.Debug("moderator connection rejected", zap.Error(err))
		return nil, err
	}

	conn := newConn(RoleModerator, h.queueSize)
	conn.moderator = principal.Moderator
	h.tickets.WatchQueue(conn)
	conn.Deliver(events.Event{
		Name:    events.EventModeratorReady,
		Payload: events.ModeratorReadyPayload{DisplayName: principal.Moderator.DisplayName},
	})

	conn.counted.Store(true)
	h.metrics.RecordConnection(string(RoleModerator), 1)
	h.logger.Debug("moderator connected", zap.String("conn_id", conn.ID()), zap.String("moderator_id", principal.Moderator.ID))
	return conn, nil
}

// HandleInbound dispatches one client frame. Malformed or unknown frames are
// ignored; real-time peers never receive failures.
func (h *Hub) HandleInbound(ctx context.Context, conn *Conn, frame Frame) {
	if conn == nil || conn.Closed() {
		return
	}
	switch conn.Role() {
	case RoleModerator:
		h.handleModerator(ctx, conn, frame)
	case RoleVisitor:
		h.handleVisitor(ctx, conn, frame)
	}
}

func (h *Hub) handleModerator(ctx context.Context, conn *Conn, frame Frame) {
	switch frame.Event {
	case events.InboundModeratorJoin:
		var payload joinPayload
		if !h.decode(frame, &payload) || payload.TicketID == "" {
			return
		}
		if err := h.tickets.WatchTicket(conn, payload.TicketID); err != nil {
			h.logger.Debug("join ignored", zap.String("ticket_id", payload.TicketID), zap.Error(err))
		}
	case events.InboundMessage:
		var payload messagePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.tickets.PostMessage(ctx, service.PostMessageInput{
			TicketID:   payload.TicketID,
			Sender:     domain.SenderModerator,
			Text:       payload.Text,
			Attachment: payload.Attachment,
			By:         conn.Moderator().DisplayName,
		})
	default:
		h.logger.Debug("unknown moderator event", zap.String("event", string(frame.Event)))
	}
}

func (h *Hub) handleVisitor(ctx context.Context, conn *Conn, frame Frame) {
	if frame.Event != events.InboundMessage {
		h.logger.Debug("unknown visitor event", zap.String("event", string(frame.Event)))
		return
	}
	var payload messagePayload
	if !h.decode(frame, &payload) {
		return
	}
	// visitors can only post to the ticket they are bound to
	h.tickets.PostMessage(ctx, service.PostMessageInput{
		TicketID:   conn.TicketID(),
		Sender:     domain.SenderUser,
		Text:       payload.Text,
		Attachment: payload.Attachment,
	})
}

func (h *Hub) decode(frame Frame, dst any) bool {
	if len(frame.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		h.logger.Debug("malformed frame", zap.String("event", string(frame.Event)), zap.Error(err))
		return false
	}
	return true
}

// Disconnect drops the connection's subscriptions. Messages it already
// appended stand.
func (h *Hub) Disconnect(conn *Conn) {
	if conn == nil {
		return
	}
	h.tickets.Detach(conn.ID())
	conn.Close()
	// the transport may close the conn first on a write failure
	if conn.counted.CompareAndSwap(true, false) {
		h.metrics.RecordConnection(string(conn.Role()), -1)
		h.logger.Debug("connection closed", zap.String("conn_id", conn.ID()), zap.String("role", string(conn.Role())))
	}
}
