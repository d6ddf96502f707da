package realtime

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/events"
)

func serveHub(t *testing.T, fx *hubFixture) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", RequireUpgrade)
	app.Get("/ws", fx.hub.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *fws.Conn {
	t.Helper()
	ws, _, err := fws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *fws.Conn) Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestWebsocketRejectsUnknownTicketAfterNotice(t *testing.T) {
	fx := newHubFixture(t)
	ws := dial(t, serveHub(t, fx)+"?role=user&ticketId=missing")

	f := readFrame(t, ws)
	var code string
	if err := json.Unmarshal(f.Data, &code); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if f.Event != events.EventError || code != events.ErrInvalidTicket {
		t.Fatalf("expected INVALID_TICKET notice, got %s %s", f.Event, f.Data)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the connection")
	}
	if got := fx.metrics.Snapshot().Connections[string(RoleVisitor)]; got != 0 {
		t.Fatalf("rejected visitor counted: %d", got)
	}
}

func TestWebsocketVisitorRoundTrip(t *testing.T) {
	fx := newHubFixture(t)
	ticket, _ := fx.tickets.CreateTicket(context.Background())
	ws := dial(t, serveHub(t, fx)+"?role=user&ticketId="+ticket.ID)

	history := readFrame(t, ws)
	if history.Event != events.EventTicketHistory {
		t.Fatalf("expected history first, got %s", history.Event)
	}

	if err := ws.WriteMessage(fws.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.WriteJSON(map[string]any{"event": "message", "data": map[string]string{"text": "hello"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, ws)
	if f.Event != events.EventMessage {
		t.Fatalf("expected message, got %s", f.Event)
	}
	var msg events.MessagePayload
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.TicketID != ticket.ID || msg.Sender != domain.SenderUser || msg.Text != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}

	_ = ws.Close()
	waitUntil(t, func() bool { return fx.metrics.Snapshot().Connections[string(RoleVisitor)] == 0 })
}

func TestWebsocketModeratorWithBadTokenClosed(t *testing.T) {
	fx := newHubFixture(t)
	ws := dial(t, serveHub(t, fx)+"?role=moderator&token=garbage")

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close an unauthenticated moderator")
	}
	if got := fx.metrics.Snapshot().Connections[string(RoleModerator)]; got != 0 {
		t.Fatalf("unauthenticated moderator counted: %d", got)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
