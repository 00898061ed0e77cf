package session

import (
	"sync"

	"github.com/stoik/tempmail/internal/models"
)

// EventType names a state change published by the Manager
type EventType string

const (
	EventProviderChanged  EventType = "provider_changed"
	EventAddressGenerated EventType = "address_generated"
	EventMessagesUpdated  EventType = "messages_updated"
	EventMessageRead      EventType = "message_read"
	EventMessageDeleted   EventType = "message_deleted"
	EventError            EventType = "error"
)

// Event is a structured notification; presentation layers decide how to show it
type Event struct {
	Type      EventType            `json:"type"`
	Provider  models.ProviderKind  `json:"provider"`
	Address   *models.EmailAddress `json:"address,omitempty"`
	MessageID string               `json:"message_id,omitempty"`
	Count     int                  `json:"count,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorKind string               `json:"error_kind,omitempty"`
}

// broker fans events out to subscribers without ever blocking the publisher;
// a subscriber whose buffer is full misses the event.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
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

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
