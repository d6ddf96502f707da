package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/config"
	"github.com/support-relay/relay/internal/events"
)

const notificationQueueSize = 128

// NotificationService relays queue-wide events to the log and an optional webhook.
// It subscribes to the moderators topic like any other connection.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	client *http.Client
	queue  chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		queue:  make(chan events.Event, notificationQueueSize),
	}
}

func (n *NotificationService) ID() string { return "notifications" }

// Deliver enqueues the event; a full queue drops it.
func (n *NotificationService) Deliver(event events.Event) bool {
	select {
	case n.queue <- event:
		return true
	default:
		n.logger.Warn("notification queue full", zap.String("event", string(event.Name)))
		return false
	}
}

// Run drains the queue until ctx is cancelled.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			n.handle(ctx, event)
		}
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) {
	n.logger.Info("queue event", zap.String("event", string(event.Name)), zap.Any("payload", event.Payload))
	if err := n.sendWebhook(ctx, event); err != nil {
		n.logger.Warn("webhook delivery failed", zap.String("event", string(event.Name)), zap.Error(err))
	}
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
