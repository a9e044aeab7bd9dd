package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, event_id, enabler_id, package_id, total_amount, currency, status,
	payment_status, payment_intent_id, confirmed_at, created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentPending
	}
	if booking.Currency == "" {
		booking.Currency = "USD"
	}

	query := `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.EventID,
		booking.EnablerID,
		booking.PackageID,
		booking.TotalAmount,
		booking.Currency,
		booking.Status,
		booking.PaymentStatus,
		booking.PaymentIntentID,
		booking.ConfirmedAt,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", translate(err))
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, translate(err))
	}
	return booking, nil
}

// ConfirmBooking moves a booking to confirmed if nobody changed it since fromVersion.
func (db *DB) ConfirmBooking(ctx context.Context, id string, fromVersion int64, paymentStatus, paymentIntentID string, confirmedAt time.Time) error {
	query := `UPDATE bookings
              SET status = ?, payment_status = ?, payment_intent_id = ?, confirmed_at = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusConfirmed, paymentStatus, paymentIntentID, confirmedAt.UTC(), time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// RevertBookingConfirmation puts a booking back to pending/pending.
func (db *DB) RevertBookingConfirmation(ctx context.Context, id string) error {
	query := `UPDATE bookings
              SET status = ?, payment_status = ?, confirmed_at = NULL, version = version + 1, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query, models.StatusPending, models.PaymentPending, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revert booking confirmation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("failed to revert booking confirmation %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetConfirmedBookingsWithoutWorkflow lists confirmed bookings whose saga never produced a workflow.
func (db *DB) GetConfirmedBookingsWithoutWorkflow(ctx context.Context, confirmedBefore time.Time, limit int) ([]*models.Booking, error) {
	query := `SELECT b.id, b.event_id, b.enabler_id, b.package_id, b.total_amount, b.currency, b.status,
                     b.payment_status, b.payment_intent_id, b.confirmed_at, b.created_at, b.updated_at, b.version
              FROM bookings b
              LEFT JOIN booking_workflows w ON w.booking_id = b.id
              WHERE b.status = ? AND w.id IS NULL
              ORDER BY b.updated_at ASC`
	rows, err := db.QueryContext(ctx, query, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed bookings without workflow: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		if b.ConfirmedAt != nil && b.ConfirmedAt.After(confirmedBefore) {
			continue
		}
		bookings = append(bookings, b)
		if limit > 0 && len(bookings) >= limit {
			break
		}
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.EventID, &b.EnablerID, &b.PackageID, &b.TotalAmount, &b.Currency, &b.Status,
		&b.PaymentStatus, &b.PaymentIntentID, &b.ConfirmedAt, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = models.ReservationHeld
	}
	now := time.Now().UTC()
	query := `INSERT INTO reservations (id, booking_id, status, valid_until, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, r.ID, r.BookingID, r.Status, r.ValidUntil.UTC(), now, now); err != nil {
		return fmt.Errorf("failed to create reservation: %w", translate(err))
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetReservationByBooking(ctx context.Context, bookingID string) (*models.Reservation, error) {
	var r models.Reservation
	query := `SELECT id, booking_id, status, valid_until, created_at, updated_at FROM reservations WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(&r.ID, &r.BookingID, &r.Status, &r.ValidUntil, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation for booking %s: %w", bookingID, translate(err))
	}
	return &r, nil
}

// UpdateReservationStatus changes the hold linked to a booking.
// A booking without a reservation is not an error; it reports false.
func (db *DB) UpdateReservationStatus(ctx context.Context, bookingID, status string) (bool, error) {
	query := `UPDATE reservations SET status = ?, updated_at = ? WHERE booking_id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
