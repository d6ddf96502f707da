package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/config"
	"github.com/support-relay/relay/internal/events"
)

func TestNotificationServicePostsQueueEvents(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var frame map[string]any
		_ = json.Unmarshal(body, &frame)
		received <- frame
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{WebhookURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	if !svc.Deliver(events.Event{Name: events.EventTicketNew, Payload: events.TicketNewPayload{ID: "t1", CreatedAt: 1}}) {
		t.Fatalf("event not queued")
	}

	select {
	case frame := <-received:
		if frame["event"] != string(events.EventTicketNew) {
			t.Fatalf("unexpected frame %v", frame)
		}
		data, _ := frame["data"].(map[string]any)
		if data["id"] != "t1" {
			t.Fatalf("unexpected payload %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook not called")
	}
}

func TestNotificationServiceDropsWhenFull(t *testing.T) {
	svc := NewNotificationService(zap.NewNop(), config.NotificationConfig{})
	for i := 0; i < notificationQueueSize; i++ {
		if !svc.Deliver(events.Event{Name: events.EventTicketUpdated}) {
			t.Fatalf("event %d rejected before queue filled", i)
		}
	}
	if svc.Deliver(events.Event{Name: events.EventTicketUpdated}) {
		t.Fatalf("expected full queue to drop")
	}
}
