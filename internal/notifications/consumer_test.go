package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
)

type recordingSink struct {
	shipped   []payloads.DropshipOrderShippedEvent
	delivered []payloads.DropshipOrderDeliveredEvent
	issues    []payloads.DropshipOrderIssueEvent
	err       error
}

func (s *recordingSink) SendShippingNotification(_ context.Context, event payloads.DropshipOrderShippedEvent) error {
	s.shipped = append(s.shipped, event)
	return s.err
}

func (s *recordingSink) SendDeliveryNotification(_ context.Context, event payloads.DropshipOrderDeliveredEvent) error {
	s.delivered = append(s.delivered, event)
	return s.err
}

func (s *recordingSink) SendIssueNotification(_ context.Context, event payloads.DropshipOrderIssueEvent) error {
	s.issues = append(s.issues, event)
	return s.err
}

func envelopeBytes(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return envelope
}

func newTestConsumer(sink Sink) *Consumer {
	return &Consumer{sink: sink, logg: testLogger()}
}

func TestConsumerDispatchesFulfillmentEvents(t *testing.T) {
	sink := &recordingSink{}
	consumer := newTestConsumer(sink)
	orderID := uuid.New()

	consumer.process(context.Background(), string(enums.EventDropshipOrderShipped), envelopeBytes(t, payloads.DropshipOrderShippedEvent{
		OrderID:        orderID,
		TrackingNumber: "TRACK123",
		CustomerEmail:  "dana@example.com",
	}))
	consumer.process(context.Background(), string(enums.EventDropshipOrderDelivered), envelopeBytes(t, payloads.DropshipOrderDeliveredEvent{
		OrderID: orderID,
	}))
	consumer.process(context.Background(), string(enums.EventDropshipOrderIssue), envelopeBytes(t, payloads.DropshipOrderIssueEvent{
		OrderID: orderID,
		Issue:   "supplier stockout",
	}))

	if len(sink.shipped) != 1 || sink.shipped[0].TrackingNumber != "TRACK123" {
		t.Fatalf("shipped not dispatched: %+v", sink.shipped)
	}
	if len(sink.delivered) != 1 || sink.delivered[0].OrderID != orderID {
		t.Fatalf("delivered not dispatched: %+v", sink.delivered)
	}
	if len(sink.issues) != 1 || sink.issues[0].Issue != "supplier stockout" {
		t.Fatalf("issue not dispatched: %+v", sink.issues)
	}
}

func TestConsumerIgnoresUnrelatedEvents(t *testing.T) {
	sink := &recordingSink{}
	consumer := newTestConsumer(sink)

	consumer.process(context.Background(), string(enums.EventImportCompleted), envelopeBytes(t, payloads.ImportCompletedEvent{}))
	consumer.process(context.Background(), "someone.elses.event", []byte(`{"data":{}}`))

	if len(sink.shipped)+len(sink.delivered)+len(sink.issues) != 0 {
		t.Fatalf("sink should not have been called")
	}
}

func TestConsumerSwallowsBadPayloads(t *testing.T) {
	sink := &recordingSink{}
	consumer := newTestConsumer(sink)

	consumer.process(context.Background(), string(enums.EventDropshipOrderShipped), []byte(`not json`))
	if len(sink.shipped) != 0 {
		t.Fatalf("malformed envelope must not reach the sink")
	}
}

func TestConsumerLogsAndContinuesOnSinkFailure(t *testing.T) {
	sink := &recordingSink{err: pkgerrors.New(pkgerrors.CodeDependency, "webhook down")}
	consumer := newTestConsumer(sink)

	consumer.process(context.Background(), string(enums.EventDropshipOrderShipped), envelopeBytes(t, payloads.DropshipOrderShippedEvent{
		OrderID: uuid.New(),
	}))
	if len(sink.shipped) != 1 {
		t.Fatalf("sink should still have been invoked once")
	}
}
