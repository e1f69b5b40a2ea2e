// Tests for the change event bus
package events

import (
	"testing"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe(4)
	ch2, cancel2 := bus.Subscribe(4)
	defer cancel1()
	defer cancel2()

	ev := Event{TimelineID: "t1", Op: "switch", StateID: "s1"}
	bus.Publish(ev)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got != ev {
				t.Errorf("Subscriber %d: expected %+v, got %+v", i, ev, got)
			}
		default:
			t.Errorf("Subscriber %d: expected an event", i)
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Op: "a"})
	bus.Publish(Event{Op: "b"}) // must not block

	got := <-ch
	if got.Op != "a" {
		t.Errorf("Expected first event, got %s", got.Op)
	}
	select {
	case ev := <-ch:
		t.Errorf("Expected overflow event dropped, got %+v", ev)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)

	cancel()
	if _, ok := <-ch; ok {
		t.Error("Expected closed channel after cancel")
	}

	// Cancel twice is safe, and publish after cancel reaches nobody.
	cancel()
	bus.Publish(Event{Op: "late"})
}
