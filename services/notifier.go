package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationKind is the severity shown to the user.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a user-facing message derived from a domain event.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	SessionID string           `json:"session_id"`
	Event     EventType        `json:"event"`
	At        time.Time        `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("session_id", n.SessionID),
		zap.String("event", string(n.Event)),
	}
	if n.Kind == NotifyError {
		l.logger.Warn(n.Message, fields...)
		return nil
	}
	l.logger.Info(n.Message, fields...)
	return nil
}

// MessageSender is satisfied by the SQS producer.
type MessageSender interface {
	SendMessage(ctx context.Context, body string) error
}

// NotificationEventType is the event_type the notification service sees.
const NotificationEventType = "product_wizard_notification"

type notificationPayload struct {
	EventType string                 `json:"event_type"`
	Recipient string                 `json:"recipient"`
	Data      map[string]interface{} `json:"data"`
}

// snsEnvelope mirrors the SNS->SQS wrapper the notification consumer unwraps.
type snsEnvelope struct {
	Message string `json:"Message"`
}

// SQSNotifier forwards notifications to the notification service queue.
type SQSNotifier struct {
	sender    MessageSender
	recipient string
}

func NewSQSNotifier(sender MessageSender, recipient string) *SQSNotifier {
	return &SQSNotifier{sender: sender, recipient: recipient}
}

func (s *SQSNotifier) Notify(ctx context.Context, n Notification) error {
	inner, err := json.Marshal(notificationPayload{
		EventType: NotificationEventType,
		Recipient: s.recipient,
		Data: map[string]interface{}{
			"kind":       n.Kind,
			"message":    n.Message,
			"session_id": n.SessionID,
			"event":      n.Event,
			"at":         n.At.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	body, err := json.Marshal(snsEnvelope{Message: string(inner)})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}
	if err := s.sender.SendMessage(ctx, string(body)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// MultiNotifier fans a notification out to several notifiers and returns
// the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var firstErr error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotificationBridge turns domain events into user notifications. Delivery
// happens off the publishing goroutine so a slow queue never stalls a
// session.
type NotificationBridge struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
	stop     func()
}

// BridgeNotifications subscribes a bridge to bus.
func BridgeNotifications(bus *EventBus, notifier Notifier, logger *zap.Logger) *NotificationBridge {
	b := &NotificationBridge{notifier: notifier, logger: logger, timeout: 5 * time.Second}
	b.stop = bus.Subscribe(b.handle)
	return b
}

// Close unsubscribes and waits for in-flight deliveries.
func (b *NotificationBridge) Close() {
	b.stop()
	b.wg.Wait()
}

func (b *NotificationBridge) handle(e Event) {
	n, ok := NotificationFor(e)
	if !ok {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.notifier.Notify(ctx, n); err != nil {
			b.logger.Warn("Failed to deliver notification",
				zap.String("event", string(e.Type)),
				zap.String("session_id", e.SessionID),
				zap.Error(err))
		}
	}()
}

// NotificationFor maps an event to the message shown to the user. Events
// with no user-facing meaning map to false.
func NotificationFor(e Event) (Notification, bool) {
	n := Notification{SessionID: e.SessionID, Event: e.Type, At: e.At}
	switch e.Type {
	case EventValidationFailed:
		n.Kind = NotifyError
		n.Message = fmt.Sprintf("Please fix %d field(s) on the %s step", len(e.Errors), e.Step)
	case EventLookupResolved:
		n.Kind = NotifyInfo
		n.Message = "Found a matching product in the shared registry"
	case EventLookupNotFound:
		n.Kind = NotifyInfo
		n.Message = "No registry match, continue with manual entry"
	case EventLookupFailed:
		n.Kind = NotifyError
		n.Message = "Registry lookup is unavailable, continue with manual entry"
	case EventCandidateAccepted:
		n.Kind = NotifySuccess
		n.Message = "Registry details applied to the draft"
	case EventSubmissionSucceeded:
		n.Kind = NotifySuccess
		n.Message = "Product created"
	case EventSubmissionFailed:
		n.Kind = NotifyError
		n.Message = "Product could not be created"
	case EventCodeContributed:
		n.Kind = NotifyInfo
		n.Message = "New code contributed to shared registry, pending verification"
	case EventSessionCancelled:
		n.Kind = NotifyInfo
		n.Message = "Product draft discarded"
	default:
		return Notification{}, false
	}
	if e.Message != "" {
		n.Message = e.Message
	}
	return n, true
}
