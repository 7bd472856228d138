package simulation

import "sync"

// EventName identifies the kind of event carried on an Engine's event bus.
type EventName string

const (
	DetectionStartedEvent   EventName = "detectionStarted"
	DetectionCompletedEvent EventName = "detectionCompleted"
	SuggestionsUpdatedEvent EventName = "suggestionsUpdated"
	SuggestionAcceptedEvent EventName = "suggestionAccepted"
	SuggestionRejectedEvent EventName = "suggestionRejected"
)

// Event is a notification broadcast by an Engine to its subscribers. Object
// carries the event payload; its concrete type depends on Name.
type Event struct {
	Name   EventName
	Object interface{}
}

// eventBus is a minimal fan-out broadcaster: each subscriber gets its own
// buffered channel so a slow reader can't stall detection.
type eventBus struct {
	mu        sync.Mutex
	listeners map[chan *Event]bool
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[chan *Event]bool)}
}

func (b *eventBus) subscribe() chan *Event {
	ch := make(chan *Event, 32)
	b.mu.Lock()
	b.listeners[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *eventBus) unsubscribe(ch chan *Event) {
	b.mu.Lock()
	if b.listeners[ch] {
		delete(b.listeners, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *eventBus) send(e *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- e:
		default:
			// Drop rather than block; subscribers that care about every
			// event should drain promptly.
		}
	}
}
