package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	KindSuccess = "success"
	KindError   = "error"
	KindInfo    = "info"

	maxQueued = 16
)

// Message is a transient, user-facing notification (a toast).
type Message struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// Notifier delivers notifications to the visitor.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Debug("notification", "kind", message.Kind, "title", message.Title, "body", message.Body)
	return nil
}

// Inbox queues toasts for one visitor until the next rendered view drains them.
// The oldest toast is dropped once the queue is full.
type Inbox struct {
	mu       sync.Mutex
	messages []Message
	next     Notifier
}

// NewInbox builds an inbox. next, if non-nil, also receives every message.
func NewInbox(next Notifier) *Inbox {
	return &Inbox{next: next}
}

// Send queues the message.
func (b *Inbox) Send(ctx context.Context, message Message) error {
	b.mu.Lock()
	if len(b.messages) == maxQueued {
		b.messages = b.messages[1:]
	}
	b.messages = append(b.messages, message)
	b.mu.Unlock()

	if b.next != nil {
		return b.next.Send(ctx, message)
	}
	return nil
}

// Drain returns and clears all queued messages.
func (b *Inbox) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = nil
	return out
}
