// Package notify delivers user-visible messages about cart and wishlist sync failures.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/syncqueue"
	"github.com/abgdnv/bazaar/pkg/messaging"
	"github.com/abgdnv/bazaar/pkg/messaging/events"
	"github.com/google/uuid"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a message addressed to one session.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"-"`
	Level     Level      `json:"level"`
	Message   string     `json:"message"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Op is set when the notification reports a discarded sync operation.
	Op *syncqueue.Operation `json:"-"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Inbox keeps the latest notifications of each session until the client reads them.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	sessions map[string][]Notification
}

// NewInbox creates an inbox holding at most capacity notifications per session.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = 50
	}
	return &Inbox{capacity: capacity, sessions: make(map[string][]Notification)}
}

func (i *Inbox) Notify(_ context.Context, n Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	list := append(i.sessions[n.SessionID], n)
	if len(list) > i.capacity {
		list = list[len(list)-i.capacity:]
	}
	i.sessions[n.SessionID] = list
	return nil
}

// Take returns and forgets the pending notifications of a session, oldest first.
func (i *Inbox) Take(session string) []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	list := i.sessions[session]
	delete(i.sessions, session)
	if list == nil {
		return []Notification{}
	}
	return slices.Clone(list)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "user notification", "session_id", n.SessionID, "message", n.Message)
	return nil
}

// EventNotifier publishes sync failures so other services can follow up on them.
// Notifications that do not carry an operation are ignored.
type EventNotifier struct {
	publisher messaging.Publisher
}

func NewEventNotifier(p messaging.Publisher) *EventNotifier {
	return &EventNotifier{publisher: p}
}

func (e *EventNotifier) Notify(ctx context.Context, n Notification) error {
	if n.Op == nil {
		return nil
	}
	return e.publisher.Publish(ctx, events.SyncFailedEvent{
		OperationID: n.Op.ID,
		SessionID:   n.SessionID,
		UserID:      n.Op.Owner,
		Kind:        string(n.Op.Kind),
		Action:      string(n.Op.Action),
		ProductID:   n.Op.ProductID,
		Reason:      n.Message,
		FailedAt:    n.CreatedAt,
	})
}

// New builds a notification with a fresh id and timestamp.
func New(session string, level Level, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		SessionID: session,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// SyncFailure converts a discarded queue operation into a notification.
func SyncFailure(session string, f syncqueue.Failure) Notification {
	op := f.Op
	n := New(session, LevelError, describe(op)+": "+f.Reason)
	n.ProductID = &op.ProductID
	n.Op = &op
	return n
}

func describe(op syncqueue.Operation) string {
	switch {
	case op.Kind == syncqueue.KindWishlist && op.Action == syncqueue.ActionAdd:
		return "Could not save item to your wishlist"
	case op.Kind == syncqueue.KindWishlist:
		return "Could not remove item from your wishlist"
	case op.Action == syncqueue.ActionRemove:
		return "Could not remove item from your cart"
	default:
		return "Could not update your cart"
	}
}
