package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// checklistSpec constrains one generated checklist.
type checklistSpec struct {
	audience   string
	categories []string
	min, max   int
	withProof  bool
}

var (
	enablerChecklist = checklistSpec{
		audience:   "enabler",
		categories: []string{"preparation", "equipment", "staffing", "communication", "logistics"},
		min:        8,
		max:        12,
		withProof:  true,
	}
	hostChecklist = checklistSpec{
		audience:   "host",
		categories: []string{"venue_access", "materials", "coordination", "permissions"},
		min:        6,
		max:        10,
	}
)

// ChecklistStep asks the reasoning service for preparation tasks and attaches them to the workflow.
type ChecklistStep struct {
	workflows   domain.WorkflowStore
	reasoner    domain.Reasoner
	callTimeout time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewChecklistStep(workflows domain.WorkflowStore, reasoner domain.Reasoner, callTimeout time.Duration, logger *zerolog.Logger) *ChecklistStep {
	return &ChecklistStep{
		workflows:   workflows,
		reasoner:    reasoner,
		callTimeout: callTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ChecklistStep) GenerateChecklists(ctx context.Context, e Entities, out *Outputs) StepResult {
	at := s.now().UTC()
	if s.reasoner == nil {
		return failed(StepChecklist, at, errors.New("reasoning service is not configured"))
	}

	enablerItems, err := s.generate(ctx, enablerChecklist, enablerPrompt(e))
	if err != nil {
		return failed(StepChecklist, at, fmt.Errorf("enabler checklist: %w", err))
	}
	hostItems, err := s.generate(ctx, hostChecklist, hostPrompt(e))
	if err != nil {
		return failed(StepChecklist, at, fmt.Errorf("host checklist: %w", err))
	}

	data := map[string]any{
		"enabler_tasks": len(enablerItems),
		"host_tasks":    len(hostItems),
	}

	workflowID := out.WorkflowID
	if workflowID == "" {
		w, err := s.workflows.GetWorkflowByBooking(ctx, e.Booking.ID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			s.logger.Debug().Str("booking_id", e.Booking.ID).Msg("no workflow, checklists not attached")
			return succeeded(StepChecklist, at, data)
		case err != nil:
			return failed(StepChecklist, at, fmt.Errorf("look up workflow: %w", err))
		}
		workflowID = w.ID
	}

	if err := s.workflows.UpdateWorkflowChecklists(ctx, workflowID, enablerItems, hostItems); err != nil {
		return failed(StepChecklist, at, err)
	}
	return succeeded(StepChecklist, at, data)
}

func (s *ChecklistStep) generate(ctx context.Context, spec checklistSpec, prompt string) ([]models.ChecklistItem, error) {
	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	raw, err := s.reasoner.Generate(callCtx, prompt, spec.schema())
	if err != nil {
		return nil, err
	}

	items, dropped := parseChecklist(raw, spec)
	if dropped > 0 {
		s.logger.Warn().Str("audience", spec.audience).Int("dropped", dropped).Msg("discarded checklist items outside schema")
	}
	if len(items) == 0 {
		return nil, errors.New("reasoning service returned no usable items")
	}
	if len(items) < spec.min {
		s.logger.Warn().Str("audience", spec.audience).Int("count", len(items)).Int("min", spec.min).Msg("checklist shorter than requested")
	}
	return items, nil
}

// parseChecklist accepts {"items": [...]} or a bare array and keeps valid items up to spec.max.
func parseChecklist(raw json.RawMessage, spec checklistSpec) ([]models.ChecklistItem, int) {
	list := gjson.GetBytes(raw, "items")
	if !list.Exists() {
		list = gjson.ParseBytes(raw)
	}
	if !list.IsArray() {
		return nil, 0
	}

	allowed := make(map[string]bool, len(spec.categories))
	for _, c := range spec.categories {
		allowed[c] = true
	}

	var (
		items   []models.ChecklistItem
		dropped int
	)
	for _, r := range list.Array() {
		task := strings.TrimSpace(r.Get("task").String())
		category := r.Get("category").String()
		if task == "" || !allowed[category] || len(items) >= spec.max {
			dropped++
			continue
		}
		item := models.ChecklistItem{
			Task:     task,
			Required: r.Get("required").Bool(),
			Category: category,
		}
		item.TracksProof = spec.withProof
		items = append(items, item)
	}
	return items, dropped
}

func (c checklistSpec) schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":     "array",
				"minItems": c.min,
				"maxItems": c.max,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"task":     map[string]any{"type": "string"},
						"required": map[string]any{"type": "boolean"},
						"category": map[string]any{"type": "string", "enum": c.categories},
					},
					"required":             []string{"task", "required", "category"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"items"},
		"additionalProperties": false,
	}
}

func enablerPrompt(e Entities) string {
	return fmt.Sprintf(
		"Create a preparation checklist of %d to %d tasks for %s, a %s vendor, delivering at %q "+
			"(%s) on %s at %s for %d guests. Use only the categories: %s. Mark safety and contractual tasks as required.",
		enablerChecklist.min, enablerChecklist.max,
		e.Enabler.BusinessName, e.Enabler.Category, e.Event.Name, e.Event.EventType,
		e.Event.Date.UTC().Format(time.RFC3339), e.Event.Location, e.Event.GuestCount,
		strings.Join(enablerChecklist.categories, ", "))
}

func hostPrompt(e Entities) string {
	return fmt.Sprintf(
		"Create a checklist of %d to %d tasks the host %s must complete so that %s can deliver %s services "+
			"at %q on %s at %s. Use only the categories: %s.",
		hostChecklist.min, hostChecklist.max,
		e.Host.FullName, e.Enabler.BusinessName, e.Enabler.Category, e.Event.Name,
		e.Event.Date.UTC().Format(time.RFC3339), e.Event.Location,
		strings.Join(hostChecklist.categories, ", "))
}
