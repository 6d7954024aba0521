// Package events fans out dashboard state changes to subscribers.
//
// The Bus is the in-process hub. Sinks (the WebSocket hub, the Kafka
// publisher) subscribe to it like any other consumer, so producers only ever
// depend on the Publisher interface.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types published by the core.
const (
	TypeAnalysisUpdated = "analysis.updated"
	TypeStationStatus   = "station.status"
	TypeMapRefreshed    = "map.refreshed"
	TypeSessionChanged  = "session.changed"
	TypeExportCompleted = "export.completed"
	TypeStationReading  = "station.reading"
)

// Event is a single state-change notification.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// New marshals payload into an Event stamped with the current time.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: data, At: time.Now().UTC()}, nil
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

// =============================================================================
// Bus
// =============================================================================

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 32

// Bus delivers each published event to every subscriber. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger.With("component", "event-bus"),
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"subscriber", id,
				"type", event.Type,
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// PublishJSON is a convenience that builds the event and logs marshal
// failures instead of returning them.
func PublishJSON(ctx context.Context, p Publisher, logger *slog.Logger, eventType string, payload any) {
	event, err := New(eventType, payload)
	if err != nil {
		logger.Error("failed to encode event", "type", eventType, "error", err)
		return
	}
	p.Publish(ctx, event)
}
