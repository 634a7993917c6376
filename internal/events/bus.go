package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler is called for each event of a subscribed type. Handlers run
// on the emitter's goroutine and must not block; slow consumers should
// hand off to a buffered channel.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type. There is no
// unsubscribe; subscribers live as long as the process.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit publishes an event to every handler subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
