package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateSystemNotification(ctx context.Context, n *models.SystemNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	actionData := n.ActionData
	if actionData == nil {
		actionData = map[string]string{}
	}
	data, err := marshalColumn(actionData)
	if err != nil {
		return fmt.Errorf("encode action data: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO system_notifications (
                id, user_id, booking_id, type, title, message, priority, actionable, action_url, action_data, is_read, created_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		n.ID, n.UserID, n.BookingID, n.Type, n.Title, n.Message, n.Priority, n.Actionable, n.ActionURL, data, n.Read, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create system notification: %w", translate(err))
	}
	n.CreatedAt = now
	return nil
}

func (db *DB) GetSystemNotificationsByBooking(ctx context.Context, bookingID string) ([]*models.SystemNotification, error) {
	query := `SELECT id, user_id, booking_id, type, title, message, priority, actionable, action_url, action_data, is_read, created_at
              FROM system_notifications WHERE booking_id = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get system notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.SystemNotification
	for rows.Next() {
		var (
			n    models.SystemNotification
			data string
		)
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.BookingID, &n.Type, &n.Title, &n.Message, &n.Priority,
			&n.Actionable, &n.ActionURL, &data, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan system notification: %w", err)
		}
		if err := unmarshalColumn(data, &n.ActionData); err != nil {
			return nil, fmt.Errorf("decode action data: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (db *DB) CreateAdminNotification(ctx context.Context, n *models.AdminNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `INSERT INTO admin_notifications (id, booking_id, type, title, message, priority, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, n.ID, n.BookingID, n.Type, n.Title, n.Message, n.Priority, now); err != nil {
		return fmt.Errorf("failed to create admin notification: %w", translate(err))
	}
	n.CreatedAt = now
	return nil
}

func (db *DB) GetAdminNotificationsByBooking(ctx context.Context, bookingID string) ([]*models.AdminNotification, error) {
	query := `SELECT id, booking_id, type, title, message, priority, created_at
              FROM admin_notifications WHERE booking_id = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.AdminNotification
	for rows.Next() {
		var n models.AdminNotification
		if err := rows.Scan(&n.ID, &n.BookingID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
