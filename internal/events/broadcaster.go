// Package events fans dashboard state changes out to event stream subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/maneesh/fasttranscribe/internal/metrics"
)

const (
	TypeJobUpdated   = "job.updated"
	TypeJobRemoved   = "job.removed"
	TypeSyncUpdated  = "sync.updated"
	TypeTreeReloaded = "tree.reloaded"
	TypeNotification = "notification"
)

// Event is one message on the stream. Data holds the affected entity.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is the payload of TypeNotification events.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// Publisher is the side of the broadcaster the services depend on.
type Publisher interface {
	Publish(event Event)
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(n)
}

// Publish sends an event to all subscribers. Slow consumers lose events
// rather than stall the publisher.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Notify publishes a notification event.
func (b *Broadcaster) Notify(title, description string) {
	b.Publish(Event{Type: TypeNotification, Data: Notification{Title: title, Description: description}})
}

// Close unsubscribes everyone, ending open streams.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(0)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Discard drops every event. Used where no stream is wired.
type Discard struct{}

func (Discard) Publish(Event) {}
