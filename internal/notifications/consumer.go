package notifications

import (
	"context"
	"encoding/json"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
)

// Consumer watches the domain event stream and turns dropship order
// transitions into notifications. Delivery is best-effort: a failed send is
// logged and the message acked, never retried into a storm.
type Consumer struct {
	subscription *pubsub.Subscriber
	sink         Sink
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(subscription *pubsub.Subscriber, sink Sink, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification subscription required")
	}
	if sink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification sink required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Consumer{subscription: subscription, sink: sink, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		c.process(ctx, msg.Attributes["event_type"], msg.Data)
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, eventType string, data []byte) {
	logCtx := c.logg.WithField(ctx, "event_type", eventType)

	handler, ok := c.handlerFor(eventType)
	if !ok {
		return
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return
	}

	if err := handler(ctx, envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification send failed", err)
		return
	}
	c.logg.Info(logCtx, "notification sent")
}

func (c *Consumer) handlerFor(eventType string) (func(context.Context, json.RawMessage) error, bool) {
	switch eventType {
	case string(enums.EventDropshipOrderShipped):
		return func(ctx context.Context, data json.RawMessage) error {
			var event payloads.DropshipOrderShippedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode shipped payload")
			}
			return c.sink.SendShippingNotification(ctx, event)
		}, true
	case string(enums.EventDropshipOrderDelivered):
		return func(ctx context.Context, data json.RawMessage) error {
			var event payloads.DropshipOrderDeliveredEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode delivered payload")
			}
			return c.sink.SendDeliveryNotification(ctx, event)
		}, true
	case string(enums.EventDropshipOrderIssue):
		return func(ctx context.Context, data json.RawMessage) error {
			var event payloads.DropshipOrderIssueEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode issue payload")
			}
			return c.sink.SendIssueNotification(ctx, event)
		}, true
	}
	return nil, false
}
