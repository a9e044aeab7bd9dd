package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"
)

const recoveryTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateRecoveryTask(ctx context.Context, task *models.RecoveryTask) error {
	query := `INSERT INTO recovery_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.Payload == "" {
		task.Payload = "{}"
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recovery task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

// GetPendingRecoveryTasks returns tasks that are due, oldest first.
func (db *DB) GetPendingRecoveryTasks(ctx context.Context, limit int) ([]models.RecoveryTask, error) {
	query := `SELECT ` + recoveryTaskColumns + `
              FROM recovery_queue
              WHERE status IN (?, ?)
              ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, models.TaskPending, models.TaskRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending recovery tasks: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var tasks []models.RecoveryTask
	for rows.Next() {
		t, err := scanRecoveryTask(rows)
		if err != nil {
			return nil, err
		}
		if t.NextRetryAt != nil && t.NextRetryAt.After(now) {
			continue
		}
		tasks = append(tasks, t)
		if limit > 0 && len(tasks) >= limit {
			break
		}
	}
	return tasks, rows.Err()
}

// HasOpenRecoveryTask reports whether a task of this type for the booking is still queued.
func (db *DB) HasOpenRecoveryTask(ctx context.Context, taskType, bookingID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM recovery_queue WHERE task_type = ? AND booking_id = ? AND status IN (?, ?)`
	err := db.QueryRowContext(ctx, query, taskType, bookingID, models.TaskPending, models.TaskRetry).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open recovery task: %w", err)
	}
	return count > 0, nil
}

func (db *DB) UpdateRecoveryTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	switch status {
	case models.TaskRetry:
		query = `UPDATE recovery_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE recovery_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, &now, id}
	default:
		query = `UPDATE recovery_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update recovery task status: %w", err)
	}
	return nil
}

func (db *DB) GetRecoveryTask(ctx context.Context, id int64) (*models.RecoveryTask, error) {
	query := `SELECT ` + recoveryTaskColumns + ` FROM recovery_queue WHERE id = ?`
	t, err := scanRecoveryTask(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery task %d: %w", id, translate(err))
	}
	return &t, nil
}

func (db *DB) GetFailedRecoveryTasks(ctx context.Context) ([]models.RecoveryTask, error) {
	query := `SELECT ` + recoveryTaskColumns + ` FROM recovery_queue WHERE status = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, models.TaskFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed recovery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.RecoveryTask
	for rows.Next() {
		t, err := scanRecoveryTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanRecoveryTask(row rowScanner) (models.RecoveryTask, error) {
	var t models.RecoveryTask
	err := row.Scan(
		&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan recovery task: %w", err)
	}
	return t, nil
}
