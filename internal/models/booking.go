package models

import "time"

type Booking struct {
	ID              string     `json:"id"`
	EventID         string     `json:"event_id"`
	EnablerID       string     `json:"enabler_id"`
	PackageID       string     `json:"package_id"`
	TotalAmount     float64    `json:"total_amount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`         // pending, confirmed, in_progress, completed, cancelled
	PaymentStatus   string     `json:"payment_status"` // pending, partial, paid
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int64      `json:"version"`
}

// Reservation is the inventory hold linked to a booking.
type Reservation struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	Status     string    `json:"status"` // HELD, CONFIRMED, RELEASED
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PaymentEvidence accompanies a confirmation triggered by a successful payment.
type PaymentEvidence struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	Provider        string    `json:"provider"`
	AmountCents     int64     `json:"amount_cents,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
}
