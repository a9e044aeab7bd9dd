package domain

import (
	"context"
	"encoding/json"
	"time"

	"eventplace/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BookingStore is the part of the gateway the confirmation handler mutates.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, id string, fromVersion int64, paymentStatus, paymentIntentID string, confirmedAt time.Time) error
	RevertBookingConfirmation(ctx context.Context, id string) error
	UpdateReservationStatus(ctx context.Context, bookingID, status string) (bool, error)
	GetConfirmedBookingsWithoutWorkflow(ctx context.Context, confirmedBefore time.Time, limit int) ([]*models.Booking, error)
}

type PartyStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsersByRole(ctx context.Context, role string) ([]*models.User, error)
	GetEnabler(ctx context.Context, id string) (*models.Enabler, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type LedgerStore interface {
	CreateContract(ctx context.Context, c *models.SmartContract) error
	GetContractByBooking(ctx context.Context, bookingID string) (*models.SmartContract, error)
	CreateEscrowAccount(ctx context.Context, e *models.EscrowAccount) error
	GetEscrowByBooking(ctx context.Context, bookingID string) (*models.EscrowAccount, error)
}

type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, w *models.BookingWorkflow) error
	GetWorkflowByBooking(ctx context.Context, bookingID string) (*models.BookingWorkflow, error)
	UpdateWorkflowChecklists(ctx context.Context, workflowID string, enabler, host []models.ChecklistItem) error
}

type NotificationStore interface {
	CreateSystemNotification(ctx context.Context, n *models.SystemNotification) error
	CreateAdminNotification(ctx context.Context, n *models.AdminNotification) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	IncrementEngineMetric(ctx context.Context, code string, success bool, at time.Time) error
}

type RecoveryStore interface {
	CreateRecoveryTask(ctx context.Context, task *models.RecoveryTask) error
	GetPendingRecoveryTasks(ctx context.Context, limit int) ([]models.RecoveryTask, error)
	HasOpenRecoveryTask(ctx context.Context, taskType, bookingID string) (bool, error)
	UpdateRecoveryTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetRecoveryTask(ctx context.Context, id int64) (*models.RecoveryTask, error)
}

// Gateway is the only way the saga and the confirmation handler reach storage.
type Gateway interface {
	BookingStore
	PartyStore
	LedgerStore
	WorkflowStore
	NotificationStore
	AuditStore
}

// Reasoner produces structured output constrained by a JSON schema.
type Reasoner interface {
	Generate(ctx context.Context, prompt string, schema map[string]any) (json.RawMessage, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ConfirmationLocker serializes confirmations of the same booking across instances.
type ConfirmationLocker interface {
	Acquire(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, bookingID string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RecoveryEnqueuer accepts work to be processed outside the request path.
type RecoveryEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType, bookingID string, payload any) error
}
