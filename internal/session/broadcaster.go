// ABOUTME: In-memory fan-out broadcaster for session state-change events
// ABOUTME: Lets UI consumers observe the controller without polling or globals

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventType identifies what changed in the session state.
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventConversationDeleted EventType = "conversation_deleted"
	EventActiveChanged       EventType = "active_changed"
	EventMessagesChanged     EventType = "messages_changed"
	EventSendSettled         EventType = "send_settled"
)

// Event is a state-change notification. Consumers re-read the store
// snapshot on receipt; the event itself carries no message payload.
type Event struct {
	Type           EventType
	ConversationID string
}

// Broadcaster provides in-memory pub/sub for session events. Non-blocking:
// events are dropped for subscribers whose channels are full.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for all session events. Returns the
// event channel and a subscription ID. The subscription is cleaned up
// automatically when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends an event to every subscriber.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"type", event.Type,
				"conversation_id", event.ConversationID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
}
