package events

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(EventBookingConfirmed, func(event *Event) error {
		received = append(received, event)
		return nil
	})

	if err := bus.PublishJSON(EventBookingConfirmed, BookingEventPayload{BookingID: "b-1"}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}

	ev := received[0]
	if ev.ID == "" {
		t.Errorf("expected event id to be set")
	}
	if ev.CreatedAt.Location().String() != "UTC" {
		t.Errorf("expected UTC timestamp, got %s", ev.CreatedAt.Location())
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(ev.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.BookingID != "b-1" {
		t.Errorf("expected booking b-1, got %q", decoded.BookingID)
	}
}

func TestEventBus_HandlerErrorsJoined(t *testing.T) {
	bus := NewEventBus()
	errA := errors.New("telegram down")
	errB := errors.New("broker down")
	var calls int

	bus.Subscribe("saga", func(*Event) error { calls++; return errA })
	bus.Subscribe("saga", func(*Event) error { calls++; return nil })
	bus.Subscribe("saga", func(*Event) error { calls++; return errB })

	err := bus.Publish(&Event{Type: "saga"})
	if calls != 3 {
		t.Fatalf("expected every handler to run, got %d calls", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both handler errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "saga handler") {
		t.Errorf("expected event type in error, got %q", err.Error())
	}
}

func TestEventBus_KeepsExplicitID(t *testing.T) {
	bus := NewEventBus()
	var got string
	bus.Subscribe("x", func(e *Event) error { got = e.ID; return nil })

	if err := bus.Publish(&Event{ID: "fixed", Type: "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got != "fixed" {
		t.Errorf("expected id fixed, got %q", got)
	}
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(&Event{Type: "unknown"}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", map[string]string{}); err != nil {
		t.Errorf("nil bus: %v", err)
	}
}

func TestNewJSONEvent_EncodeError(t *testing.T) {
	_, err := NewJSONEvent("bad", map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Fatal("expected encode error")
	}
	if !strings.HasPrefix(err.Error(), "encode bad payload") {
		t.Errorf("unexpected error: %v", err)
	}
}
