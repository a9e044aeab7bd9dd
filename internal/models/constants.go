package models

// Booking status
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Booking payment status
const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

const (
	ReservationHeld      = "HELD"
	ReservationConfirmed = "CONFIRMED"
	ReservationReleased  = "RELEASED"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	ContractDraft      = "DRAFT"
	ContractActive     = "ACTIVE"
	ContractRetired    = "RETIRED"
	ContractSuperseded = "SUPERSEDED"
)

const (
	EscrowHold           = "HOLD"
	EscrowReleased       = "RELEASED"
	EscrowRefunded       = "REFUNDED"
	EscrowPartialRelease = "PARTIAL_RELEASE"
	EscrowDisputed       = "DISPUTED"
	EscrowCancelled      = "CANCELLED"

	ReconciliationPending = "PENDING"
)

const (
	StageConfirmed      = "CONFIRMED"
	StagePreEvent       = "PRE_EVENT"
	StageEventExecution = "EVENT_EXECUTION"
	StageCompleted      = "COMPLETED"

	MilestonePending  = "pending"
	LiveStatusIdle    = "not_started"
	EscrowReleaseHeld = "held"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// Audit actions
const (
	AuditBookingConfirmed          = "booking_confirmed"
	AuditBookingConfirmationFailed = "booking_confirmation_failed"
	AuditBookingSagaRetried        = "booking_saga_retried"
)

// Recovery task status
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

const (
	// DefaultLockTTLSeconds время жизни блокировки подтверждения
	DefaultLockTTLSeconds = 120

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)
