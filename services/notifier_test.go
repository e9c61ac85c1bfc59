package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"product-wizard-service/models"
	"product-wizard-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSender struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (f *fakeSender) SendMessage(_ context.Context, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return f.err
}

type collectingNotifier struct {
	mu  sync.Mutex
	got []services.Notification
	err error
}

func (c *collectingNotifier) Notify(_ context.Context, n services.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return c.err
}

func (c *collectingNotifier) All() []services.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]services.Notification(nil), c.got...)
}

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		event services.Event
		kind  services.NotificationKind
		msg   string
		ok    bool
	}{
		{services.Event{Type: services.EventCodeContributed}, services.NotifyInfo, "New code contributed to shared registry, pending verification", true},
		{services.Event{Type: services.EventSubmissionSucceeded}, services.NotifySuccess, "Product created", true},
		{services.Event{Type: services.EventSubmissionFailed}, services.NotifyError, "Product could not be created", true},
		{services.Event{Type: services.EventLookupFailed}, services.NotifyError, "Registry lookup is unavailable, continue with manual entry", true},
		{services.Event{
			Type:   services.EventValidationFailed,
			Step:   models.StepBasics,
			Errors: []models.FieldError{{Field: "name"}, {Field: "price"}},
		}, services.NotifyError, "Please fix 2 field(s) on the basics step", true},
		{services.Event{Type: services.EventLookupNotFound, Message: "custom"}, services.NotifyInfo, "custom", true},
		{services.Event{Type: services.EventDraftChanged}, "", "", false},
		{services.Event{Type: services.EventStepChanged}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			n, ok := services.NotificationFor(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.msg, n.Message)
		})
	}
}

func TestLogNotifier_ErrorsLogAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := services.NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), services.Notification{Kind: services.NotifyError, Message: "bad"}))
	require.NoError(t, n.Notify(context.Background(), services.Notification{Kind: services.NotifySuccess, Message: "good"}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "bad", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}

func TestSQSNotifier_WrapsPayloadInSNSEnvelope(t *testing.T) {
	sender := &fakeSender{}
	n := services.NewSQSNotifier(sender, "admin-dashboard")
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	err := n.Notify(context.Background(), services.Notification{
		Kind:      services.NotifySuccess,
		Message:   "Product created",
		SessionID: "sess-1",
		Event:     services.EventSubmissionSucceeded,
		At:        at,
	})
	require.NoError(t, err)
	require.Len(t, sender.bodies, 1)

	var envelope struct {
		Message string `json:"Message"`
	}
	require.NoError(t, json.Unmarshal([]byte(sender.bodies[0]), &envelope))

	var payload struct {
		EventType string            `json:"event_type"`
		Recipient string            `json:"recipient"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(envelope.Message), &payload))
	assert.Equal(t, services.NotificationEventType, payload.EventType)
	assert.Equal(t, "admin-dashboard", payload.Recipient)
	assert.Equal(t, "success", payload.Data["kind"])
	assert.Equal(t, "Product created", payload.Data["message"])
	assert.Equal(t, "sess-1", payload.Data["session_id"])
	assert.Equal(t, "submission_succeeded", payload.Data["event"])
	assert.Equal(t, "2026-02-03T04:05:06Z", payload.Data["at"])
}

func TestSQSNotifier_SendError(t *testing.T) {
	boom := errors.New("queue missing")
	n := services.NewSQSNotifier(&fakeSender{err: boom}, "x")
	assert.ErrorIs(t, n.Notify(context.Background(), services.Notification{}), boom)
}

func TestMultiNotifier_DeliversToAllAndReturnsFirstError(t *testing.T) {
	first := errors.New("first")
	a := &collectingNotifier{err: first}
	b := &collectingNotifier{err: errors.New("second")}
	c := &collectingNotifier{}

	err := services.MultiNotifier{a, b, c}.Notify(context.Background(), services.Notification{Message: "m"})
	assert.ErrorIs(t, err, first)
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
	assert.Len(t, c.All(), 1)
}

func TestNotificationBridge_ForwardsUserFacingEvents(t *testing.T) {
	bus := services.NewEventBus()
	sink := &collectingNotifier{}
	bridge := services.BridgeNotifications(bus, sink, zap.NewNop())

	bus.Publish(services.Event{Type: services.EventDraftChanged, SessionID: "s"})
	bus.Publish(services.Event{Type: services.EventCodeContributed, SessionID: "s"})
	bridge.Close()

	got := sink.All()
	require.Len(t, got, 1)
	assert.Equal(t, services.EventCodeContributed, got[0].Event)
	assert.Equal(t, "s", got[0].SessionID)

	bus.Publish(services.Event{Type: services.EventSubmissionSucceeded})
	assert.Len(t, sink.All(), 1)
}

func TestNotificationBridge_DeliveryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := services.NewEventBus()
	bridge := services.BridgeNotifications(bus, &collectingNotifier{err: errors.New("down")}, zap.New(core))

	bus.Publish(services.Event{Type: services.EventSubmissionFailed})
	bridge.Close()

	assert.Equal(t, 1, logs.FilterMessage("Failed to deliver notification").Len())
}
