package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateWorkflow(ctx context.Context, w *models.BookingWorkflow) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cols, err := encodeWorkflowColumns(w)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `INSERT INTO booking_workflows (
                id, booking_id, stage, milestones, enabler_checklist, host_checklist, live_status,
                performance_score, punctuality_score, quality_score, risk_flags, incidents,
                escrow_release_status, created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		w.ID, w.BookingID, w.Stage, cols.milestones, cols.enablerChecklist, cols.hostChecklist, w.LiveStatus,
		w.PerformanceScore, w.PunctualityScore, w.QualityScore, cols.riskFlags, cols.incidents,
		w.EscrowReleaseStatus, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", translate(err))
	}
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

func (db *DB) GetWorkflowByBooking(ctx context.Context, bookingID string) (*models.BookingWorkflow, error) {
	var (
		w                                 models.BookingWorkflow
		milestones, enablerList, hostList string
		riskFlags, incidents              string
	)
	query := `SELECT id, booking_id, stage, milestones, enabler_checklist, host_checklist, live_status,
                     performance_score, punctuality_score, quality_score, risk_flags, incidents,
                     escrow_release_status, created_at, updated_at
              FROM booking_workflows WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&w.ID, &w.BookingID, &w.Stage, &milestones, &enablerList, &hostList, &w.LiveStatus,
		&w.PerformanceScore, &w.PunctualityScore, &w.QualityScore, &riskFlags, &incidents,
		&w.EscrowReleaseStatus, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow for booking %s: %w", bookingID, translate(err))
	}

	for _, c := range []struct {
		raw  string
		dest any
	}{
		{milestones, &w.Milestones},
		{enablerList, &w.EnablerChecklist},
		{hostList, &w.HostChecklist},
		{riskFlags, &w.RiskFlags},
		{incidents, &w.Incidents},
	} {
		if err := unmarshalColumn(c.raw, c.dest); err != nil {
			return nil, fmt.Errorf("decode workflow %s: %w", w.ID, err)
		}
	}
	for i := range w.Milestones {
		w.Milestones[i].DueDate = w.Milestones[i].DueDate.UTC()
	}
	return &w, nil
}

// UpdateWorkflowChecklists replaces both checklists of a workflow.
func (db *DB) UpdateWorkflowChecklists(ctx context.Context, workflowID string, enabler, host []models.ChecklistItem) error {
	enablerList, err := marshalColumn(nonNilChecklist(enabler))
	if err != nil {
		return fmt.Errorf("encode enabler checklist: %w", err)
	}
	hostList, err := marshalColumn(nonNilChecklist(host))
	if err != nil {
		return fmt.Errorf("encode host checklist: %w", err)
	}

	query := `UPDATE booking_workflows SET enabler_checklist = ?, host_checklist = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, enablerList, hostList, time.Now().UTC(), workflowID)
	if err != nil {
		return fmt.Errorf("failed to update workflow checklists: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("failed to update workflow checklists %s: %w", workflowID, ErrNotFound)
	}
	return nil
}

type workflowColumns struct {
	milestones       string
	enablerChecklist string
	hostChecklist    string
	riskFlags        string
	incidents        string
}

func encodeWorkflowColumns(w *models.BookingWorkflow) (workflowColumns, error) {
	var (
		cols workflowColumns
		err  error
	)
	if cols.milestones, err = marshalColumn(w.Milestones); err != nil {
		return cols, fmt.Errorf("encode milestones: %w", err)
	}
	if cols.enablerChecklist, err = marshalColumn(nonNilChecklist(w.EnablerChecklist)); err != nil {
		return cols, fmt.Errorf("encode enabler checklist: %w", err)
	}
	if cols.hostChecklist, err = marshalColumn(nonNilChecklist(w.HostChecklist)); err != nil {
		return cols, fmt.Errorf("encode host checklist: %w", err)
	}
	if cols.riskFlags, err = marshalColumn(nonNilStrings(w.RiskFlags)); err != nil {
		return cols, fmt.Errorf("encode risk flags: %w", err)
	}
	if cols.incidents, err = marshalColumn(nonNilStrings(w.Incidents)); err != nil {
		return cols, fmt.Errorf("encode incidents: %w", err)
	}
	return cols, nil
}

func nonNilChecklist(items []models.ChecklistItem) []models.ChecklistItem {
	if items == nil {
		return []models.ChecklistItem{}
	}
	return items
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
