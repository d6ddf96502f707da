package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 64 * 1024
)

// RequireUpgrade rejects plain HTTP requests on the websocket route.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves /ws?role=user&ticketId=... and /ws?role=moderator&token=...
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Hub) serve(ws *websocket.Conn) {
	defer h.flusher.FlushOnPanic()
	ctx := context.Background()

	var (
		conn *Conn
		err  error
	)
	if Role(ws.Query("role")) == RoleModerator {
		conn, err = h.ConnectModerator(ctx, ws.Query("token"))
		if err != nil {
			_ = ws.Close()
			return
		}
	} else {
		conn, err = h.ConnectVisitor(ws.Query("ticketId"))
	}

	written := make(chan struct{})
	go func() {
		defer h.flusher.FlushOnPanic()
		defer close(written)
		h.writePump(ws, conn)
	}()

	if err == nil {
		h.readPump(ctx, ws, conn)
	}
	h.Disconnect(conn)
	<-written
	_ = ws.Close()
}

func (h *Hub) readPump(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	ws.SetReadLimit(maxInboundSize)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Debug("discarding malformed frame", zap.String("conn_id", conn.ID()), zap.Error(err))
			continue
		}
		h.HandleInbound(ctx, conn, frame)
	}
}

// writePump drains the connection queue. On termination it flushes events
// already queued so a rejection notice reaches the peer.
func (h *Hub) writePump(ws *websocket.Conn, conn *Conn) {
	for {
		select {
		case event := <-conn.Outbound():
			if !h.write(ws, conn, event) {
				return
			}
		case <-conn.Done():
			for {
				select {
				case event := <-conn.Outbound():
					if !h.write(ws, conn, event) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) write(ws *websocket.Conn, conn *Conn, event any) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(event); err != nil {
		h.logger.Debug("write failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		conn.Close()
		// unblocks the reader
		_ = ws.Close()
		return false
	}
	return true
}
