package saga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventplace/internal/domain"
	"eventplace/internal/models"

	"github.com/rs/zerolog"
)

const notificationTypeBookingConfirmed = "booking_confirmed"

type notificationStore interface {
	domain.NotificationStore
	GetUsersByRole(ctx context.Context, role string) ([]*models.User, error)
}

// NotificationStep tells host, enabler and admins that the booking is confirmed.
type NotificationStep struct {
	store        notificationStore
	dashboardURL string
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewNotificationStep(store notificationStore, dashboardURL string, logger *zerolog.Logger) *NotificationStep {
	return &NotificationStep{
		store:        store,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		logger:       logger,
		now:          time.Now,
	}
}

// Notify creates the host and enabler notifications, then the admin one if any admin exists.
// A missing contract or workflow id is left out of the action data.
func (s *NotificationStep) Notify(ctx context.Context, e Entities, out Outputs) StepResult {
	at := s.now().UTC()
	sent := 0

	actionData := map[string]string{"booking_id": e.Booking.ID}
	if out.ContractID != "" {
		actionData["contract_id"] = out.ContractID
	}
	if out.WorkflowID != "" {
		actionData["workflow_id"] = out.WorkflowID
	}

	eventDate := e.Event.Date.UTC().Format("Jan 2, 2006 15:04 MST")
	host := &models.SystemNotification{
		UserID:     e.Host.ID,
		BookingID:  e.Booking.ID,
		Type:       notificationTypeBookingConfirmed,
		Title:      "Booking confirmed",
		Message:    fmt.Sprintf("%s is confirmed for %s on %s. Review your contract and preparation checklist.", e.Enabler.BusinessName, e.Event.Name, eventDate),
		Priority:   models.PriorityHigh,
		Actionable: true,
		ActionURL:  s.actionURL("host", e.Booking.ID),
		ActionData: actionData,
	}
	if err := s.store.CreateSystemNotification(ctx, host); err != nil {
		return s.fail(at, sent, fmt.Errorf("notify host: %w", err))
	}
	sent++

	enabler := &models.SystemNotification{
		UserID:     e.Enabler.UserID,
		BookingID:  e.Booking.ID,
		Type:       notificationTypeBookingConfirmed,
		Title:      "New confirmed booking",
		Message:    fmt.Sprintf("%s confirmed your services for %s on %s at %s. Complete your readiness checklist.", e.Host.FullName, e.Event.Name, eventDate, e.Event.Location),
		Priority:   models.PriorityHigh,
		Actionable: true,
		ActionURL:  s.actionURL("enabler", e.Booking.ID),
		ActionData: actionData,
	}
	if err := s.store.CreateSystemNotification(ctx, enabler); err != nil {
		return s.fail(at, sent, fmt.Errorf("notify enabler: %w", err))
	}
	sent++

	admins, err := s.store.GetUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return s.fail(at, sent, fmt.Errorf("list admins: %w", err))
	}
	if len(admins) > 0 {
		admin := &models.AdminNotification{
			BookingID: e.Booking.ID,
			Type:      notificationTypeBookingConfirmed,
			Title:     "Booking confirmed",
			Message: fmt.Sprintf("Booking %s confirmed: %s for %s (%.2f %s), event %s.",
				e.Booking.ID, e.Enabler.BusinessName, e.Host.FullName, e.Booking.TotalAmount, e.Booking.Currency, eventDate),
			Priority: models.PriorityNormal,
		}
		if err := s.store.CreateAdminNotification(ctx, admin); err != nil {
			return s.fail(at, sent, fmt.Errorf("notify admins: %w", err))
		}
		sent++
	}

	return succeeded(StepNotification, at, map[string]any{"notifications_sent": sent})
}

func (s *NotificationStep) fail(at time.Time, sent int, err error) StepResult {
	r := failed(StepNotification, at, err)
	r.Data = map[string]any{"notifications_sent": sent}
	return r
}

func (s *NotificationStep) actionURL(role, bookingID string) string {
	return fmt.Sprintf("%s/%s/bookings/%s", s.dashboardURL, role, bookingID)
}
