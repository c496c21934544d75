// Package notify fans pending-work events out to transport subscribers.
//
// The registry and the approval queue publish from whatever goroutine happens
// to perform the state transition; subscribers (gateway WebSocket hub,
// terminal prompter, telegram channel) drain their own buffered channel on
// their own schedule. Publishing never blocks and a missed notification never
// aborts the state transition it reports.
package notify

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 16

// Event types published by the coordination stores.
const (
	TypeInputPending = "input_pending"
	TypeToolPending  = "tool_pending"
	TypeToolUpdate   = "tool_update"
)

// Event is one pending-work notification. Payload is plain serializable data
// carrying at least "id" plus request- or tool-specific fields.
type Event struct {
	Type    string
	Payload map[string]any
}

// Notifier is a thread-safe event fan-out.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates a notifier with no subscribers.
func New() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered event channel. The returned cancel func
// removes the subscription; after cancel the channel is closed.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan Event, subscriberBuffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Safe to call from any
// goroutine, including with zero subscribers. A subscriber whose buffer is
// full loses the event; that is logged and otherwise ignored.
func (n *Notifier) Publish(evt Event) {
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for id, sub := range n.subs {
		select {
		case sub <- evt:
		default:
			slog.Warn("notification dropped for slow subscriber", "subscriber", id, "type", evt.Type)
		}
	}
}

// SubscriberCount reports the current number of subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
