package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed entity gateway.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// каждое соединение к :memory: открывает собственную пустую базу
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, path: path, logger: logger}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            full_name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'user',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS enablers (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            business_name TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS events (
            id TEXT PRIMARY KEY,
            host_id TEXT NOT NULL,
            name TEXT NOT NULL,
            event_type TEXT NOT NULL DEFAULT '',
            date DATETIME NOT NULL,
            location TEXT NOT NULL DEFAULT '',
            guest_count INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            event_id TEXT NOT NULL,
            enabler_id TEXT NOT NULL,
            package_id TEXT NOT NULL DEFAULT '',
            total_amount REAL NOT NULL,
            currency TEXT NOT NULL DEFAULT 'USD',
            status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            payment_intent_id TEXT NOT NULL DEFAULT '',
            confirmed_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL UNIQUE,
            status TEXT NOT NULL,
            valid_until DATETIME NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS smart_contracts (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL UNIQUE,
            parties TEXT NOT NULL,
            event_details TEXT NOT NULL,
            terms TEXT NOT NULL,
            canonical_hash TEXT NOT NULL,
            terms_hash TEXT NOT NULL,
            summary TEXT NOT NULL,
            status TEXT NOT NULL,
            pre_signed_by_enabler BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS escrow_accounts (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL UNIQUE,
            contract_id TEXT NOT NULL DEFAULT '',
            amount_cents INTEGER NOT NULL,
            currency TEXT NOT NULL,
            commission_rate REAL NOT NULL,
            commission_cents INTEGER NOT NULL,
            enabler_payout_cents INTEGER NOT NULL,
            hold_until DATETIME NOT NULL,
            status TEXT NOT NULL,
            release_rules TEXT NOT NULL,
            reconciliation_status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            CHECK (amount_cents = commission_cents + enabler_payout_cents)
        )`,
		`CREATE TABLE IF NOT EXISTS booking_workflows (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL UNIQUE,
            stage TEXT NOT NULL,
            milestones TEXT NOT NULL,
            enabler_checklist TEXT NOT NULL,
            host_checklist TEXT NOT NULL,
            live_status TEXT NOT NULL,
            performance_score REAL NOT NULL DEFAULT 0,
            punctuality_score REAL NOT NULL DEFAULT 0,
            quality_score REAL NOT NULL DEFAULT 0,
            risk_flags TEXT NOT NULL,
            incidents TEXT NOT NULL,
            escrow_release_status TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS system_notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            priority TEXT NOT NULL,
            actionable BOOLEAN NOT NULL DEFAULT 0,
            action_url TEXT NOT NULL DEFAULT '',
            action_data TEXT NOT NULL DEFAULT '{}',
            is_read BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS admin_notifications (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            priority TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
            id TEXT PRIMARY KEY,
            action TEXT NOT NULL,
            severity TEXT NOT NULL,
            entity_type TEXT NOT NULL,
            entity_id TEXT NOT NULL,
            actor TEXT NOT NULL,
            details TEXT NOT NULL DEFAULT '{}',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS engine_metrics (
            code TEXT PRIMARY KEY,
            total_executions INTEGER NOT NULL DEFAULT 0,
            successful_executions INTEGER NOT NULL DEFAULT 0,
            failed_executions INTEGER NOT NULL DEFAULT 0,
            last_execution DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS recovery_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT NOT NULL DEFAULT '{}',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_system_notifications_booking ON system_notifications(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_notifications_booking ON admin_notifications(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recovery_queue_status ON recovery_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func marshalColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalColumn(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

type rowScanner interface {
	Scan(dest ...any) error
}
