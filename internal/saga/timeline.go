package saga

import (
	"context"
	"time"

	"eventplace/internal/domain"
	"eventplace/internal/models"

	"github.com/rs/zerolog"
)

const day = 24 * time.Hour

const (
	MilestoneHostPreparation  = "Host Preparation Confirmation"
	MilestoneEnablerReadiness = "Enabler Readiness Confirmation"
	MilestoneServiceExecution = "Event Service Execution"
	MilestonePostEventReview  = "Post-Event Review & Validation"
)

// TimelineStep creates the booking workflow. Its existence marks a completed saga.
type TimelineStep struct {
	store  domain.WorkflowStore
	logger *zerolog.Logger
	now    func() time.Time
}

func NewTimelineStep(store domain.WorkflowStore, logger *zerolog.Logger) *TimelineStep {
	return &TimelineStep{store: store, logger: logger, now: time.Now}
}

func (s *TimelineStep) CreateTimeline(ctx context.Context, e Entities, confirmedAt time.Time, out *Outputs) StepResult {
	at := s.now().UTC()
	milestones := BuildMilestones(e, confirmedAt)

	workflow := &models.BookingWorkflow{
		BookingID:           e.Booking.ID,
		Stage:               models.StageConfirmed,
		Milestones:          milestones,
		EnablerChecklist:    []models.ChecklistItem{},
		HostChecklist:       []models.ChecklistItem{},
		LiveStatus:          models.LiveStatusIdle,
		RiskFlags:           []string{},
		Incidents:           []string{},
		EscrowReleaseStatus: models.EscrowReleaseHeld,
	}
	if err := s.store.CreateWorkflow(ctx, workflow); err != nil {
		return failed(StepTimeline, at, err)
	}

	out.WorkflowID = workflow.ID
	return succeeded(StepTimeline, at, map[string]any{
		"workflow_id":      workflow.ID,
		"milestones_count": len(milestones),
	})
}

// BuildMilestones returns the four delivery milestones in their fixed order.
// The first is anchored to the confirmation time, the rest to the event date.
func BuildMilestones(e Entities, confirmedAt time.Time) []models.Milestone {
	eventDate := e.Event.Date.UTC()
	return []models.Milestone{
		{
			Name:        MilestoneHostPreparation,
			Description: "Host confirms venue access, guest details and materials for " + e.Event.Name,
			DueDate:     confirmedAt.UTC().Add(day),
			Status:      models.MilestonePending,
		},
		{
			Name:        MilestoneEnablerReadiness,
			Description: e.Enabler.BusinessName + " confirms staff, equipment and logistics are ready",
			DueDate:     eventDate.Add(-2 * day),
			Status:      models.MilestonePending,
		},
		{
			Name:        MilestoneServiceExecution,
			Description: "Service delivered at " + e.Event.Location,
			DueDate:     eventDate,
			Status:      models.MilestonePending,
		},
		{
			Name:        MilestonePostEventReview,
			Description: "Host reviews the delivered service and validates completion for escrow release",
			DueDate:     eventDate.Add(day),
			Status:      models.MilestonePending,
		},
	}
}
