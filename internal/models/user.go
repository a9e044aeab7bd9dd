package models

import "time"

// User is a marketplace account. Hosts are plain users; admins carry RoleAdmin.
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Enabler is a vendor profile owned by a user.
type Enabler struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BusinessName string    `json:"business_name"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event is the occasion a host is organising.
type Event struct {
	ID         string    `json:"id"`
	HostID     string    `json:"host_id"`
	Name       string    `json:"name"`
	EventType  string    `json:"event_type"`
	Date       time.Time `json:"date"`
	Location   string    `json:"location"`
	GuestCount int       `json:"guest_count"`
	CreatedAt  time.Time `json:"created_at"`
}
