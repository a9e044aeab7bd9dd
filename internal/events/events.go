package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed          = "booking_confirmed"
	EventBookingConfirmationFailed = "booking_confirmation_failed"
	EventBookingSagaRetried        = "booking_saga_retried"
)

// BookingEventPayload describes the outcome of a confirmation for event consumers.
type BookingEventPayload struct {
	BookingID          string    `json:"booking_id"`
	EventID            string    `json:"event_id,omitempty"`
	EnablerID          string    `json:"enabler_id,omitempty"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"payment_status,omitempty"`
	ContractID         string    `json:"contract_id,omitempty"`
	EscrowID           string    `json:"escrow_id,omitempty"`
	WorkflowID         string    `json:"workflow_id,omitempty"`
	HasPartialFailures bool      `json:"has_partial_failures"`
	FailedSteps        []string  `json:"failed_steps,omitempty"`
	Error              string    `json:"error,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Event is a published domain event with a JSON payload.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event. A returned error is reported to the publisher
// but does not stop delivery to the remaining handlers.
type EventHandler func(event *Event) error

// EventBus is an in-process, synchronous pub/sub keyed by event type.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish calls every handler of the event type in subscription order and
// returns their joined errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := b.subscribers[event.Type]
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON encodes payload and publishes it. A nil bus drops the event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}
	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}
