package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []Event
	d.Subscribe(EventTicketCreated, func(_ context.Context, event Event) error {
		got = append(got, event)
		return nil
	})
	d.Subscribe(EventTicketUpdated, func(_ context.Context, event Event) error {
		t.Error("handler for a different event type invoked")
		return nil
	})

	event := Event{ID: "e-1", Type: EventTicketCreated, TicketID: "t-1"}
	if err := d.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e-1" {
		t.Fatalf("delivered = %+v", got)
	}
}

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	d.Subscribe(EventTaskCompleted, func(context.Context, Event) error {
		return errors.New("handler exploded")
	})
	delivered := false
	d.Subscribe(EventTaskCompleted, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTaskCompleted}); err != nil {
		t.Fatalf("publish must not surface handler errors, got %v", err)
	}
	if !delivered {
		t.Error("later handler skipped after earlier failure")
	}
}

func TestDispatcherNoSubscribersIsNoop(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketAssigned}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
