package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkellerhals/sourcelane-backend/pkg/config"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func TestNewSinkFallsBackToLogSink(t *testing.T) {
	sink, err := NewSink(config.NotifyConfig{}, testLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := sink.(*LogSink); !ok {
		t.Fatalf("expected log sink, got %T", sink)
	}
	if err := sink.SendShippingNotification(context.Background(), payloads.DropshipOrderShippedEvent{OrderID: uuid.New()}); err != nil {
		t.Fatalf("log sink send: %v", err)
	}
}

func TestWebhookSinkPostsNotification(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewSink(config.NotifyConfig{WebhookURL: server.URL, OperatorChannel: "ops-fulfillment"}, testLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	event := payloads.DropshipOrderShippedEvent{
		OrderID:        uuid.New(),
		TrackingNumber: "TRACK123",
		CustomerEmail:  "dana@example.com",
	}
	if err := sink.SendShippingNotification(context.Background(), event); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received.Kind != "order_shipped" {
		t.Fatalf("unexpected kind %q", received.Kind)
	}
	if received.Channel != "" {
		t.Fatalf("customer notification must not carry the operator channel, got %q", received.Channel)
	}
}

func TestWebhookSinkRoutesIssuesToOperatorChannel(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(config.NotifyConfig{WebhookURL: server.URL, OperatorChannel: "ops-fulfillment"}, testLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.SendIssueNotification(context.Background(), payloads.DropshipOrderIssueEvent{Issue: "stockout"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received.Kind != "fulfillment_issue" || received.Channel != "ops-fulfillment" {
		t.Fatalf("issue routed wrong: %+v", received)
	}
}

func TestWebhookSinkSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(config.NotifyConfig{WebhookURL: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	err = sink.SendDeliveryNotification(context.Background(), payloads.DropshipOrderDeliveredEvent{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
