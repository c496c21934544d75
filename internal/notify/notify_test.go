package notify

import "testing"

func TestNotifier_FanOut(t *testing.T) {
	n := New()
	a, cancelA := n.Subscribe()
	b, cancelB := n.Subscribe()
	defer cancelA()
	defer cancelB()

	n.Publish(Event{Type: TypeInputPending, Payload: map[string]any{"id": "in-1"}})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Payload["id"] != "in-1" {
				t.Fatalf("subscriber %s got wrong event: %+v", name, evt)
			}
		default:
			t.Fatalf("subscriber %s missed the event", name)
		}
	}
}

func TestNotifier_CancelStopsDelivery(t *testing.T) {
	n := New()
	ch, cancel := n.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Fatal("expected channel closed after cancel")
	}
	if n.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", n.SubscriberCount())
	}

	// Publishing after the last cancel must not panic.
	n.Publish(Event{Type: TypeToolUpdate})
}

func TestNotifier_SlowSubscriberDropsNotBlocks(t *testing.T) {
	n := New()
	_, cancel := n.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must return every time.
	for i := 0; i < subscriberBuffer*2; i++ {
		n.Publish(Event{Type: TypeToolPending})
	}
}

func TestNotifier_NilSafePublish(t *testing.T) {
	var n *Notifier
	n.Publish(Event{Type: TypeInputPending})
}
