package saga

import (
	"time"

	"eventplace/internal/models"
)

const (
	StepContract     = "contract_generation"
	StepEscrow       = "escrow_lock"
	StepTimeline     = "timeline_creation"
	StepChecklist    = "checklist_generation"
	StepNotification = "notification_fanout"
	StepMetrics      = "metrics_update"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "success"
	StepFailed    StepStatus = "failed"
)

// Execution status of a whole run. Failure only when the initial entity load failed.
const (
	ExecutionSuccess = "success"
	ExecutionFailure = "failure"
)

// StepResult is the tagged outcome of one step. Error is set only when Status is failed.
type StepResult struct {
	Step      string         `json:"step"`
	Status    StepStatus     `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (r StepResult) Succeeded() bool {
	return r.Status == StepSucceeded
}

func succeeded(step string, at time.Time, data map[string]any) StepResult {
	return StepResult{Step: step, Status: StepSucceeded, Data: data, Timestamp: at}
}

func failed(step string, at time.Time, err error) StepResult {
	return StepResult{Step: step, Status: StepFailed, Error: err.Error(), Timestamp: at}
}

// Outputs carries the identifiers produced by earlier steps to later ones.
type Outputs struct {
	ContractID   string `json:"contract_id,omitempty"`
	ContractHash string `json:"contract_hash,omitempty"`
	EscrowID     string `json:"escrow_id,omitempty"`
	WorkflowID   string `json:"workflow_id,omitempty"`
}

// Entities are loaded once per run and shared read-only by every step.
type Entities struct {
	Booking *models.Booking
	Event   *models.Event
	Enabler *models.Enabler
	Host    *models.User
}

// Context is what the trigger hands to the executor.
type Context struct {
	Payment     *models.PaymentEvidence
	ConfirmedAt time.Time
}

type ExecutionLog struct {
	BookingID   string       `json:"booking_id"`
	Steps       []StepResult `json:"steps"`
	Status      string       `json:"status"`
	Outputs     Outputs      `json:"outputs"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

func (l *ExecutionLog) append(r StepResult) {
	l.Steps = append(l.Steps, r)
}

// AllSucceeded is true when the run loaded its entities and no step failed.
func (l *ExecutionLog) AllSucceeded() bool {
	if l == nil || l.Status != ExecutionSuccess {
		return false
	}
	for _, s := range l.Steps {
		if !s.Succeeded() {
			return false
		}
	}
	return true
}

// HasPartialFailures is true when the run completed but at least one step failed.
func (l *ExecutionLog) HasPartialFailures() bool {
	if l == nil || l.Status != ExecutionSuccess {
		return false
	}
	return len(l.FailedSteps()) > 0
}

func (l *ExecutionLog) FailedSteps() []string {
	if l == nil {
		return nil
	}
	var out []string
	for _, s := range l.Steps {
		if !s.Succeeded() {
			out = append(out, s.Step)
		}
	}
	return out
}

// Step returns the recorded result for a step name.
func (l *ExecutionLog) Step(name string) (StepResult, bool) {
	if l == nil {
		return StepResult{}, false
	}
	for _, s := range l.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

func (l *ExecutionLog) Duration() time.Duration {
	return l.CompletedAt.Sub(l.StartedAt)
}
