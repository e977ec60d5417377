package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkellerhals/sourcelane-backend/pkg/config"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
)

// Sink delivers customer and operator notifications. Implementations must
// treat every send as best-effort; callers log and move on when a send
// fails.
type Sink interface {
	SendShippingNotification(ctx context.Context, event payloads.DropshipOrderShippedEvent) error
	SendDeliveryNotification(ctx context.Context, event payloads.DropshipOrderDeliveredEvent) error
	SendIssueNotification(ctx context.Context, event payloads.DropshipOrderIssueEvent) error
}

// NewSink picks the webhook sink when a webhook URL is configured and falls
// back to the log-only sink otherwise.
func NewSink(cfg config.NotifyConfig, logg *logger.Logger) (Sink, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.WebhookURL == "" {
		return &LogSink{logg: logg}, nil
	}
	return NewWebhookSink(cfg, logg)
}

// webhookMessage is the wire shape posted to the notification webhook.
type webhookMessage struct {
	Kind    string `json:"kind"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data"`
}

// WebhookSink POSTs notification messages to a configured endpoint.
type WebhookSink struct {
	url     string
	channel string
	client  *http.Client
	logg    *logger.Logger
}

// NewWebhookSink builds a webhook sink from the notify config.
func NewWebhookSink(cfg config.NotifyConfig, logg *logger.Logger) (*WebhookSink, error) {
	if cfg.WebhookURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:     cfg.WebhookURL,
		channel: cfg.OperatorChannel,
		client:  &http.Client{Timeout: timeout},
		logg:    logg,
	}, nil
}

func (s *WebhookSink) SendShippingNotification(ctx context.Context, event payloads.DropshipOrderShippedEvent) error {
	return s.post(ctx, webhookMessage{Kind: "order_shipped", Data: event})
}

func (s *WebhookSink) SendDeliveryNotification(ctx context.Context, event payloads.DropshipOrderDeliveredEvent) error {
	return s.post(ctx, webhookMessage{Kind: "order_delivered", Data: event})
}

// SendIssueNotification routes to the operator channel, never the customer.
func (s *WebhookSink) SendIssueNotification(ctx context.Context, event payloads.DropshipOrderIssueEvent) error {
	return s.post(ctx, webhookMessage{Kind: "fulfillment_issue", Channel: s.channel, Data: event})
}

func (s *WebhookSink) post(ctx context.Context, message webhookMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "post notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("notification webhook returned %d", resp.StatusCode))
	}
	return nil
}

// LogSink writes notifications to the structured log. Used in dev and as the
// fallback when no webhook is configured.
type LogSink struct {
	logg *logger.Logger
}

func (s *LogSink) SendShippingNotification(ctx context.Context, event payloads.DropshipOrderShippedEvent) error {
	logCtx := s.logg.WithOrderID(ctx, event.OrderID.String())
	logCtx = s.logg.WithField(logCtx, "tracking_number", event.TrackingNumber)
	s.logg.Info(logCtx, "shipping notification")
	return nil
}

func (s *LogSink) SendDeliveryNotification(ctx context.Context, event payloads.DropshipOrderDeliveredEvent) error {
	logCtx := s.logg.WithOrderID(ctx, event.OrderID.String())
	s.logg.Info(logCtx, "delivery notification")
	return nil
}

func (s *LogSink) SendIssueNotification(ctx context.Context, event payloads.DropshipOrderIssueEvent) error {
	logCtx := s.logg.WithOrderID(ctx, event.OrderID.String())
	logCtx = s.logg.WithField(logCtx, "issue", event.Issue)
	s.logg.Info(logCtx, "fulfillment issue notification")
	return nil
}
