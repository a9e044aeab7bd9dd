package saga

import (
	"context"
	"time"

	"eventplace/internal/domain"
)

const DefaultEngineCode = "ABE"

type MetricsStep struct {
	store domain.AuditStore
	code  string
	now   func() time.Time
}

func NewMetricsStep(store domain.AuditStore, code string) *MetricsStep {
	if code == "" {
		code = DefaultEngineCode
	}
	return &MetricsStep{store: store, code: code, now: time.Now}
}

// RecordOutcome bumps the engine counters. The counter row is created on first use.
func (s *MetricsStep) RecordOutcome(ctx context.Context, outcome string) StepResult {
	at := s.now().UTC()
	if err := s.store.IncrementEngineMetric(ctx, s.code, outcome == ExecutionSuccess, at); err != nil {
		return failed(StepMetrics, at, err)
	}
	return succeeded(StepMetrics, at, map[string]any{"engine": s.code, "outcome": outcome})
}
