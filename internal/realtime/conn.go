package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/events"
)

// Role is fixed for the lifetime of a connection.
type Role string

const (
	RoleVisitor   Role = "user"
	RoleModerator Role = "moderator"
)

// DefaultQueueSize bounds each connection's pending outbound events.
const DefaultQueueSize = 256

// Conn is one live real-time connection. Events are queued on a bounded
// channel drained by the transport; a full queue drops events for this
// connection only.
type Conn struct {
	id        string
	role      Role
	ticketID  string
	moderator domain.Moderator

	send      chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	// set while the connection is included in the live gauge
	counted atomic.Bool
}

func newConn(role Role, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Conn{
		id:   uuid.NewString(),
		role: role,
		send: make(chan events.Event, queueSize),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() Role { return c.role }

// TicketID is the bound ticket for visitor connections.
func (c *Conn) TicketID() string { return c.ticketID }

// Moderator is the authenticated identity for moderator connections.
func (c *Conn) Moderator() domain.Moderator { return c.moderator }

// Deliver queues the event without blocking.
func (c *Conn) Deliver(event events.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Outbound is the queue the transport writes from.
func (c *Conn) Outbound() <-chan events.Event { return c.send }

// Done is closed once the connection is terminated.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close terminates the connection. Events already queued stay readable.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
