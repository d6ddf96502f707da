package worker

import (
	"context"

	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/service"
)

// StartNotificationWorker subscribes the notification service to the queue
// topic and drains it in the background until ctx is cancelled. A panic in
// the worker flushes pending state before the process dies.
func StartNotificationWorker(ctx context.Context, tickets *service.TicketService, notifications *service.NotificationService, flusher *persistence.Flusher) {
	if tickets == nil || notifications == nil {
		return
	}
	tickets.WatchQueue(notifications)
	go func() {
		defer flusher.FlushOnPanic()
		notifications.Run(ctx)
	}()
}
