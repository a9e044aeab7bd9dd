package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/events"
	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/models"
	"eventplace/internal/money"
	"eventplace/internal/saga"

	"github.com/rs/zerolog"
)

const (
	auditEntityBooking = "booking"
	auditActor         = "confirmation_handler"
)

// SagaRunner executes the after-booking saga.
type SagaRunner interface {
	Execute(ctx context.Context, bookingID string, sc saga.Context) (*saga.ExecutionLog, error)
}

// ConfirmationResult is what callers of the confirmation handler get back.
type ConfirmationResult struct {
	Success          bool               `json:"success"`
	BookingID        string             `json:"booking_id"`
	ABEResult        *saga.ExecutionLog `json:"abe_result,omitempty"`
	AlreadyConfirmed bool               `json:"already_confirmed,omitempty"`
	AlreadyCompleted bool               `json:"already_completed,omitempty"`
}

// HasPartialFailures reports whether the saga ran but some steps failed.
func (r *ConfirmationResult) HasPartialFailures() bool {
	return r != nil && r.ABEResult.HasPartialFailures()
}

type ConfirmationService struct {
	gateway  domain.Gateway
	runner   SagaRunner
	locker   domain.ConfirmationLocker
	eventBus domain.EventPublisher
	lockTTL  time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewConfirmationService(
	gateway domain.Gateway,
	runner SagaRunner,
	locker domain.ConfirmationLocker,
	eventBus domain.EventPublisher,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *ConfirmationService {
	if lockTTL <= 0 {
		lockTTL = models.DefaultLockTTLSeconds * time.Second
	}
	return &ConfirmationService{
		gateway:  gateway,
		runner:   runner,
		locker:   locker,
		eventBus: eventBus,
		lockTTL:  lockTTL,
		logger:   logging.Component(logger, "confirmation"),
		now:      time.Now,
	}
}

// ConfirmWithPayment confirms a booking after a successful payment.
func (s *ConfirmationService) ConfirmWithPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) (*ConfirmationResult, error) {
	return s.Confirm(ctx, bookingID, &evidence)
}

// ConfirmDirect confirms a booking without payment evidence; the payment status becomes partial.
func (s *ConfirmationService) ConfirmDirect(ctx context.Context, bookingID string) (*ConfirmationResult, error) {
	return s.Confirm(ctx, bookingID, nil)
}

// Confirm transitions a pending booking to confirmed and runs the saga.
// A booking that is already confirmed is reported as such and the saga is not run again.
func (s *ConfirmationService) Confirm(ctx context.Context, bookingID string, evidence *models.PaymentEvidence) (*ConfirmationResult, error) {
	release, err := s.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	// once the lock is held the run completes even if the caller goes away
	return s.confirmLocked(context.WithoutCancel(ctx), bookingID, evidence)
}

// Retry runs the saga again for a booking whose previous run left no workflow behind.
func (s *ConfirmationService) Retry(ctx context.Context, bookingID string) (*ConfirmationResult, error) {
	release, err := s.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	_, err = s.gateway.GetWorkflowByBooking(ctx, bookingID)
	switch {
	case err == nil:
		s.logger.Info().Str("booking_id", bookingID).Msg("workflow exists, nothing to retry")
		return &ConfirmationResult{Success: true, BookingID: bookingID, AlreadyCompleted: true}, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("failed to check workflow: %w", err)
	}

	booking, err := s.gateway.GetBooking(ctx, bookingID)
	if err != nil {
		s.auditLoadFailure(ctx, bookingID, err)
		return nil, err
	}

	switch booking.Status {
	case models.StatusPending:
		return s.confirmLocked(ctx, bookingID, nil)
	case models.StatusConfirmed:
	default:
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, bookingID, booking.Status)
	}

	sc := saga.Context{ConfirmedAt: s.now().UTC()}
	if booking.ConfirmedAt != nil {
		sc.ConfirmedAt = *booking.ConfirmedAt
	}

	execLog, err := s.runner.Execute(ctx, bookingID, sc)
	if err != nil {
		// the booking stays confirmed; only this attempt failed
		s.audit(ctx, models.AuditBookingSagaRetried, models.SeverityCritical, bookingID, map[string]any{
			"error": err.Error(),
			"steps": stepOutcomes(execLog),
		})
		s.publish(events.EventBookingConfirmationFailed, failurePayload(booking, err, s.now()))
		metrics.IncConfirmation("retry_failed")
		return nil, err
	}

	s.audit(ctx, models.AuditBookingSagaRetried, models.SeverityInfo, bookingID, sagaDetails(execLog, nil))
	s.publish(events.EventBookingSagaRetried, successPayload(booking, models.StatusConfirmed, booking.PaymentStatus, execLog, s.now()))
	metrics.IncConfirmation(confirmationOutcome(execLog, "retried"))

	return &ConfirmationResult{Success: true, BookingID: bookingID, ABEResult: execLog}, nil
}

func (s *ConfirmationService) confirmLocked(ctx context.Context, bookingID string, evidence *models.PaymentEvidence) (*ConfirmationResult, error) {
	booking, err := s.gateway.GetBooking(ctx, bookingID)
	if err != nil {
		s.auditLoadFailure(ctx, bookingID, err)
		return nil, err
	}

	switch booking.Status {
	case models.StatusConfirmed:
		s.logger.Info().Str("booking_id", bookingID).Msg("booking already confirmed")
		metrics.IncConfirmation("already_confirmed")
		return &ConfirmationResult{Success: true, BookingID: bookingID, AlreadyConfirmed: true}, nil
	case models.StatusPending:
	default:
		return nil, fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, bookingID, booking.Status)
	}

	paymentStatus, intentID := models.PaymentPartial, ""
	if evidence != nil {
		paymentStatus, intentID = models.PaymentPaid, evidence.PaymentIntentID
		if evidence.AmountCents > 0 && evidence.AmountCents != money.ToCents(booking.TotalAmount) {
			s.logger.Warn().
				Str("booking_id", bookingID).
				Int64("paid_cents", evidence.AmountCents).
				Int64("total_cents", money.ToCents(booking.TotalAmount)).
				Msg("payment amount differs from booking total")
		}
	}

	confirmedAt := s.now().UTC()
	if err := s.gateway.ConfirmBooking(ctx, bookingID, booking.Version, paymentStatus, intentID, confirmedAt); err != nil {
		// nothing was written; a concurrent writer owns the booking now
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, err
		}
		return nil, s.fail(ctx, booking, fmt.Errorf("failed to confirm booking: %w", err), nil)
	}

	if _, err := s.gateway.UpdateReservationStatus(ctx, bookingID, models.ReservationConfirmed); err != nil {
		return nil, s.fail(ctx, booking, err, nil)
	}

	execLog, err := s.runner.Execute(ctx, bookingID, saga.Context{Payment: evidence, ConfirmedAt: confirmedAt})
	if err != nil {
		return nil, s.fail(ctx, booking, err, execLog)
	}

	s.audit(ctx, models.AuditBookingConfirmed, models.SeverityInfo, bookingID, sagaDetails(execLog, evidence))
	s.publish(events.EventBookingConfirmed, successPayload(booking, models.StatusConfirmed, paymentStatus, execLog, s.now()))
	metrics.IncConfirmation(confirmationOutcome(execLog, "confirmed"))

	s.logger.Info().
		Str("booking_id", bookingID).
		Str("payment_status", paymentStatus).
		Bool("has_partial_failures", execLog.HasPartialFailures()).
		Msg("booking confirmed")

	return &ConfirmationResult{Success: true, BookingID: bookingID, ABEResult: execLog}, nil
}

// fail rolls the booking back to pending, records a critical audit entry and returns cause.
func (s *ConfirmationService) fail(ctx context.Context, booking *models.Booking, cause error, execLog *saga.ExecutionLog) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.gateway.RevertBookingConfirmation(ctx, booking.ID); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("failed to revert booking confirmation")
	}
	if _, err := s.gateway.UpdateReservationStatus(ctx, booking.ID, models.ReservationHeld); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("failed to restore reservation hold")
	}

	s.audit(ctx, models.AuditBookingConfirmationFailed, models.SeverityCritical, booking.ID, map[string]any{
		"error":       cause.Error(),
		"rolled_back": true,
		"steps":       stepOutcomes(execLog),
	})
	s.publish(events.EventBookingConfirmationFailed, failurePayload(booking, cause, s.now()))
	metrics.IncConfirmation("failed")

	s.logger.Error().Err(cause).Str("booking_id", booking.ID).Msg("booking confirmation failed, rolled back")
	return cause
}

func (s *ConfirmationService) lock(ctx context.Context, bookingID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	acquired, err := s.locker.Acquire(ctx, bookingID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire confirmation lock: %w", err)
	}
	if !acquired {
		metrics.IncConfirmation("locked")
		return nil, ErrConfirmationInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), bookingID); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("failed to release confirmation lock")
		}
	}, nil
}

// auditLoadFailure records a critical entry keyed by the requested id when the booking cannot be read.
func (s *ConfirmationService) auditLoadFailure(ctx context.Context, bookingID string, err error) {
	s.audit(ctx, models.AuditBookingConfirmationFailed, models.SeverityCritical, bookingID, map[string]any{
		"error":       err.Error(),
		"rolled_back": false,
	})
	metrics.IncConfirmation("failed")
}

func (s *ConfirmationService) audit(ctx context.Context, action, severity, bookingID string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("failed to encode audit details")
		raw = nil
	}
	entry := &models.AuditLog{
		Action:     action,
		Severity:   severity,
		EntityType: auditEntityBooking,
		EntityID:   bookingID,
		Actor:      auditActor,
		Details:    raw,
	}
	if err := s.gateway.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("booking_id", bookingID).Str("action", action).Msg("failed to write audit log")
	}
}

func (s *ConfirmationService) publish(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", payload.BookingID).Msg("publish event error")
	}
}

func sagaDetails(execLog *saga.ExecutionLog, evidence *models.PaymentEvidence) map[string]any {
	details := map[string]any{
		"status":               execLog.Status,
		"steps":                stepOutcomes(execLog),
		"has_partial_failures": execLog.HasPartialFailures(),
		"contract_id":          execLog.Outputs.ContractID,
		"escrow_id":            execLog.Outputs.EscrowID,
		"workflow_id":          execLog.Outputs.WorkflowID,
		"duration_ms":          execLog.Duration().Milliseconds(),
	}
	if evidence != nil {
		details["payment_intent_id"] = evidence.PaymentIntentID
		details["payment_provider"] = evidence.Provider
	}
	return details
}

func stepOutcomes(execLog *saga.ExecutionLog) []map[string]string {
	if execLog == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(execLog.Steps))
	for _, step := range execLog.Steps {
		entry := map[string]string{"step": step.Step, "status": string(step.Status)}
		if step.Error != "" {
			entry["error"] = step.Error
		}
		out = append(out, entry)
	}
	return out
}

func confirmationOutcome(execLog *saga.ExecutionLog, ok string) string {
	if execLog.HasPartialFailures() {
		return "partial"
	}
	return ok
}

func successPayload(b *models.Booking, status, paymentStatus string, execLog *saga.ExecutionLog, at time.Time) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:          b.ID,
		EventID:            b.EventID,
		EnablerID:          b.EnablerID,
		Status:             status,
		PaymentStatus:      paymentStatus,
		ContractID:         execLog.Outputs.ContractID,
		EscrowID:           execLog.Outputs.EscrowID,
		WorkflowID:         execLog.Outputs.WorkflowID,
		HasPartialFailures: execLog.HasPartialFailures(),
		FailedSteps:        execLog.FailedSteps(),
		OccurredAt:         at.UTC(),
	}
}

func failurePayload(b *models.Booking, cause error, at time.Time) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:  b.ID,
		EventID:    b.EventID,
		EnablerID:  b.EnablerID,
		Status:     b.Status,
		Error:      cause.Error(),
		OccurredAt: at.UTC(),
	}
}
