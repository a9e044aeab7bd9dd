package saga

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/config"
	"eventplace/internal/domain"
	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/money"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "eventplace/internal/saga"

// Executor runs the after-booking saga for one booking at a time.
// Steps run strictly in order; a failed step is recorded and the next one still runs.
type Executor struct {
	gateway     domain.Gateway
	contract    *ContractStep
	escrow      *EscrowStep
	timeline    *TimelineStep
	checklist   *ChecklistStep
	notify      *NotificationStep
	metrics     *MetricsStep
	engine      string
	stepTimeout time.Duration
	// checklistTimeout replaces stepTimeout for the checklist step.
	checklistTimeout time.Duration
	tracer           trace.Tracer
	logger           *zerolog.Logger
	now              func() time.Time
}

func NewExecutor(gw domain.Gateway, reasoner domain.Reasoner, cfg config.SagaConfig, reasoningTimeout time.Duration, logger *zerolog.Logger) (*Executor, error) {
	if cfg.EscrowHoldHours == 0 {
		cfg.EscrowHoldHours = money.DefaultEscrowHoldHours
	}
	calc, err := money.NewCalculator(cfg.Commission(), cfg.EscrowHoldHours)
	if err != nil {
		return nil, fmt.Errorf("saga money settings: %w", err)
	}
	engine := cfg.EngineCode
	if engine == "" {
		engine = DefaultEngineCode
	}
	log := logging.Component(logger, "saga")

	return &Executor{
		gateway:          gw,
		contract:         NewContractStep(gw, cfg.Currency, log),
		escrow:           NewEscrowStep(gw, calc, cfg.Currency, log),
		timeline:         NewTimelineStep(gw, log),
		checklist:        NewChecklistStep(gw, reasoner, reasoningTimeout, log),
		notify:           NewNotificationStep(gw, cfg.DashboardURL, log),
		metrics:          NewMetricsStep(gw, engine),
		engine:           engine,
		stepTimeout:      cfg.StepTimeout,
		checklistTimeout: checklistBudget(cfg, reasoningTimeout),
		tracer:           otel.Tracer(tracerName),
		logger:           log,
		now:              time.Now,
	}, nil
}

// Execute loads the booking's entities and runs every step.
// The returned error is non-nil only when loading failed; the log is returned either way.
// checklistBudget is the configured checklist timeout, or enough for every
// reasoning call plus one ordinary step when none is configured.
func checklistBudget(cfg config.SagaConfig, reasoningTimeout time.Duration) time.Duration {
	if cfg.ChecklistTimeout > 0 {
		return cfg.ChecklistTimeout
	}
	if cfg.StepTimeout <= 0 || reasoningTimeout <= 0 {
		return 0
	}
	return config.ChecklistReasoningCalls*reasoningTimeout + cfg.StepTimeout
}

func (x *Executor) Execute(ctx context.Context, bookingID string, sc Context) (*ExecutionLog, error) {
	ctx, span := x.tracer.Start(ctx, "saga.execute", trace.WithAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("engine", x.engine),
	))
	defer span.End()

	execLog := &ExecutionLog{BookingID: bookingID, StartedAt: x.now().UTC()}
	if sc.ConfirmedAt.IsZero() {
		sc.ConfirmedAt = execLog.StartedAt
	}

	entities, err := x.load(ctx, bookingID)
	if err != nil {
		execLog.Status = ExecutionFailure
		execLog.Error = err.Error()
		x.finish(ctx, execLog)
		span.RecordError(err)
		span.SetStatus(codes.Error, "entity load failed")
		x.logger.Error().Err(err).Str("booking_id", bookingID).Msg("saga aborted: entities could not be loaded")
		return execLog, err
	}

	var out Outputs
	x.run(ctx, execLog, StepContract, x.stepTimeout, func(ctx context.Context) StepResult {
		return x.contract.Generate(ctx, *entities, &out)
	})
	x.run(ctx, execLog, StepEscrow, x.stepTimeout, func(ctx context.Context) StepResult {
		return x.escrow.Lock(ctx, *entities, &out)
	})
	x.run(ctx, execLog, StepTimeline, x.stepTimeout, func(ctx context.Context) StepResult {
		return x.timeline.CreateTimeline(ctx, *entities, sc.ConfirmedAt, &out)
	})
	x.run(ctx, execLog, StepChecklist, x.checklistTimeout, func(ctx context.Context) StepResult {
		return x.checklist.GenerateChecklists(ctx, *entities, &out)
	})
	x.run(ctx, execLog, StepNotification, x.stepTimeout, func(ctx context.Context) StepResult {
		return x.notify.Notify(ctx, *entities, out)
	})

	execLog.Outputs = out
	execLog.Status = ExecutionSuccess
	x.finish(ctx, execLog)

	if failedSteps := execLog.FailedSteps(); len(failedSteps) > 0 {
		span.SetAttributes(attribute.StringSlice("failed_steps", failedSteps))
		x.logger.Warn().Str("booking_id", bookingID).Strs("failed_steps", failedSteps).Msg("saga completed with partial failures")
	} else {
		x.logger.Info().Str("booking_id", bookingID).Dur("duration", execLog.Duration()).Msg("saga completed")
	}
	return execLog, nil
}

func (x *Executor) load(ctx context.Context, bookingID string) (*Entities, error) {
	ctx, span := x.tracer.Start(ctx, "saga.load")
	defer span.End()

	booking, err := x.gateway.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	event, err := x.gateway.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	enabler, err := x.gateway.GetEnabler(ctx, booking.EnablerID)
	if err != nil {
		return nil, fmt.Errorf("load enabler: %w", err)
	}
	host, err := x.gateway.GetUser(ctx, event.HostID)
	if err != nil {
		return nil, fmt.Errorf("load host: %w", err)
	}
	return &Entities{Booking: booking, Event: event, Enabler: enabler, Host: host}, nil
}

// run executes one step under its own timeout and span, and records the result.
func (x *Executor) run(ctx context.Context, execLog *ExecutionLog, step string, timeout time.Duration, fn func(context.Context) StepResult) {
	ctx, span := x.tracer.Start(ctx, "saga.step."+step, trace.WithAttributes(
		attribute.String("booking_id", execLog.BookingID),
		attribute.String("step", step),
	))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := fn(ctx)
	execLog.append(result)
	metrics.IncSagaStep(step, string(result.Status))

	if !result.Succeeded() {
		span.SetStatus(codes.Error, result.Error)
		x.logger.Error().
			Str("booking_id", execLog.BookingID).
			Str("step", step).
			Str("error", result.Error).
			Msg("saga step failed")
		return
	}
	x.logger.Debug().Str("booking_id", execLog.BookingID).Str("step", step).Msg("saga step succeeded")
}

// finish records the outcome in the engine counters as the last step.
func (x *Executor) finish(ctx context.Context, execLog *ExecutionLog) {
	outcome := execLog.Status
	x.run(ctx, execLog, StepMetrics, x.stepTimeout, func(ctx context.Context) StepResult {
		return x.metrics.RecordOutcome(ctx, outcome)
	})
	execLog.CompletedAt = x.now().UTC()
	metrics.ObserveSaga(x.engine, execLog.Status, execLog.Duration())
}
