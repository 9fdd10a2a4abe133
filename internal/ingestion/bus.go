package ingestion

import "sync"

// Bus fans out progress events for in-flight imports to any number of
// subscribers (one per open /api/imports/{id}/stream websocket
// connection). The teacher's own event-bus type
// (internal/events.Bus) was not present in the retrieval pack, so this
// is a minimal from-scratch fanout built to the same Subscribe/Emit
// shape its event-data structs imply.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]chan Message
}

// Message is one event delivered to a subscriber channel.
type Message struct {
	Event string
	Data  any
}

// NewBus builds an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]chan Message)}
}

// emit broadcasts an event to every subscriber of importID. It is not
// itself an EventEmitter; ScopedEmitter.Emit calls it with the import
// the emitter was built for.
func (b *Bus) emit(importID, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[importID] {
		select {
		case ch <- Message{Event: event, Data: data}:
		default:
			// Slow consumer: drop rather than block ingestion.
		}
	}
}

// Subscribe registers a buffered channel for importID's events. The
// returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe(importID string, buffer int) (<-chan Message, func()) {
	ch := make(chan Message, buffer)
	b.mu.Lock()
	b.subscribers[importID] = append(b.subscribers[importID], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subscribers[importID]
		for i, c := range chans {
			if c == ch {
				b.subscribers[importID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// ScopedEmitter adapts a Bus to the EventEmitter interface for one
// import, so ProgressReporter doesn't need to know about topics.
type ScopedEmitter struct {
	bus      *Bus
	importID string
}

// Scoped returns an EventEmitter that routes every Emit call to this
// import's subscribers.
func (b *Bus) Scoped(importID string) EventEmitter {
	return ScopedEmitter{bus: b, importID: importID}
}

func (e ScopedEmitter) Emit(event string, data any) {
	e.bus.emit(e.importID, event, data)
}
