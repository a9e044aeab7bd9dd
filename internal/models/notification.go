package models

import "time"

// SystemNotification is addressed to a single participant.
type SystemNotification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	BookingID  string            `json:"booking_id"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Priority   string            `json:"priority"`
	Actionable bool              `json:"actionable"`
	ActionURL  string            `json:"action_url,omitempty"`
	ActionData map[string]string `json:"action_data,omitempty"`
	Read       bool              `json:"read"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AdminNotification is an informational record for the admin group.
type AdminNotification struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}
