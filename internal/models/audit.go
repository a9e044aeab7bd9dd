package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Severity   string          `json:"severity"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Actor      string          `json:"actor"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EngineMetric is a keyed execution counter for an automation engine.
type EngineMetric struct {
	Code                 string     `json:"code"`
	TotalExecutions      int64      `json:"total_executions"`
	SuccessfulExecutions int64      `json:"successful_executions"`
	FailedExecutions     int64      `json:"failed_executions"`
	LastExecution        *time.Time `json:"last_execution"`
}
