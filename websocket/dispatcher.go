package websocket

import (
	"sync"
)

// Handler reacts to a single decoded event. Handlers run on the read
// pump goroutine, in registration order, so they must not block.
type Handler func(Event)

// Dispatcher routes decoded events to registered handlers, keyed by
// event type. Registration and removal are safe to call from inside a
// handler: delivery iterates over a copy of the handler list.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   int
	handlers map[EventType][]subscription
}

type subscription struct {
	id int
	fn Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[EventType][]subscription),
	}
}

// On registers a handler for an event type and returns a removal
// function. Calling the removal function more than once is harmless.
func (d *Dispatcher) On(eventType EventType, fn Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[eventType] = append(d.handlers[eventType], subscription{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		entries := d.handlers[eventType]
		for i, entry := range entries {
			if entry.id == id {
				d.handlers[eventType] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers an event to every handler registered for its type.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.Lock()
	entries := d.handlers[event.Type]
	snapshot := make([]subscription, len(entries))
	copy(snapshot, entries)
	d.mu.Unlock()

	for _, entry := range snapshot {
		entry.fn(event)
	}
}
