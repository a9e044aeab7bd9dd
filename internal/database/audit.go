package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

// CreateAuditLog appends an entry. Audit rows are never updated.
func (db *DB) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	details := "{}"
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}

	now := time.Now().UTC()
	query := `INSERT INTO audit_logs (id, action, severity, entity_type, entity_id, actor, details, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		entry.ID, entry.Action, entry.Severity, entry.EntityType, entry.EntityID, entry.Actor, details, now)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", translate(err))
	}
	entry.CreatedAt = now
	return nil
}

func (db *DB) GetAuditLogs(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	query := `SELECT id, action, severity, entity_type, entity_id, actor, details, created_at
              FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var (
			entry   models.AuditLog
			details string
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Severity, &entry.EntityType, &entry.EntityID,
			&entry.Actor, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.Details = []byte(details)
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

// IncrementEngineMetric bumps the counters for an engine code, creating the row on first use.
func (db *DB) IncrementEngineMetric(ctx context.Context, code string, success bool, at time.Time) error {
	var ok, failed int
	if success {
		ok = 1
	} else {
		failed = 1
	}

	query := `INSERT INTO engine_metrics (code, total_executions, successful_executions, failed_executions, last_execution)
              VALUES (?, 1, ?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                  total_executions = total_executions + 1,
                  successful_executions = successful_executions + excluded.successful_executions,
                  failed_executions = failed_executions + excluded.failed_executions,
                  last_execution = excluded.last_execution`
	if _, err := db.ExecContext(ctx, query, code, ok, failed, at.UTC()); err != nil {
		return fmt.Errorf("failed to increment engine metric: %w", err)
	}
	return nil
}

func (db *DB) GetEngineMetric(ctx context.Context, code string) (*models.EngineMetric, error) {
	var m models.EngineMetric
	query := `SELECT code, total_executions, successful_executions, failed_executions, last_execution
              FROM engine_metrics WHERE code = ?`
	err := db.QueryRowContext(ctx, query, code).Scan(
		&m.Code, &m.TotalExecutions, &m.SuccessfulExecutions, &m.FailedExecutions, &m.LastExecution,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine metric %s: %w", code, translate(err))
	}
	return &m, nil
}
