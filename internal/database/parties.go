package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := time.Now().UTC()
	query := `INSERT INTO users (id, full_name, email, role, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, user.ID, user.FullName, user.Email, user.Role, now); err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	user.CreatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	query := `SELECT id, full_name, email, role, created_at FROM users WHERE id = ?`
	if err := db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, translate(err))
	}
	return &u, nil
}

func (db *DB) GetUsersByRole(ctx context.Context, role string) ([]*models.User, error) {
	query := `SELECT id, full_name, email, role, created_at FROM users WHERE role = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by role: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (db *DB) CreateEnabler(ctx context.Context, enabler *models.Enabler) error {
	if enabler.ID == "" {
		enabler.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `INSERT INTO enablers (id, user_id, business_name, category, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, enabler.ID, enabler.UserID, enabler.BusinessName, enabler.Category, now); err != nil {
		return fmt.Errorf("failed to create enabler: %w", translate(err))
	}
	enabler.CreatedAt = now
	return nil
}

func (db *DB) GetEnabler(ctx context.Context, id string) (*models.Enabler, error) {
	var e models.Enabler
	query := `SELECT id, user_id, business_name, category, created_at FROM enablers WHERE id = ?`
	if err := db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.UserID, &e.BusinessName, &e.Category, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get enabler %s: %w", id, translate(err))
	}
	return &e, nil
}

func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `INSERT INTO events (id, host_id, name, event_type, date, location, guest_count, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		event.ID, event.HostID, event.Name, event.EventType, event.Date.UTC(), event.Location, event.GuestCount, now)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", translate(err))
	}
	event.CreatedAt = now
	return nil
}

func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	query := `SELECT id, host_id, name, event_type, date, location, guest_count, created_at FROM events WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.HostID, &e.Name, &e.EventType, &e.Date, &e.Location, &e.GuestCount, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, translate(err))
	}
	e.Date = e.Date.UTC()
	return &e, nil
}
