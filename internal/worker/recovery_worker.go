package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/models"
	"eventplace/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskConfirmPayment = "confirm_payment"
	TaskRetrySaga      = "retry_saga"
)

// Confirmer is the part of the confirmation handler the worker drives.
type Confirmer interface {
	ConfirmWithPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) (*service.ConfirmationResult, error)
	Retry(ctx context.Context, bookingID string) (*service.ConfirmationResult, error)
}

// confirmPaymentPayload is persisted in RecoveryTask.Payload as JSON.
type confirmPaymentPayload struct {
	Evidence models.PaymentEvidence `json:"evidence"`
}

// RecoveryWorker consumes recovery_queue tasks: payment confirmations handed off by the
// webhook and saga retries queued by operators or the sweep.
type RecoveryWorker struct {
	store         domain.RecoveryStore
	confirmer     Confirmer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.RecoveryTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewRecoveryWorker(store domain.RecoveryStore, confirmer Confirmer, redisClient *redis.Client, retry RetryPolicy, batchSize int, logger *zerolog.Logger) *RecoveryWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if batchSize <= 0 {
		batchSize = 20
	}

	return &RecoveryWorker{
		store:         store,
		confirmer:     confirmer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.RecoveryTask, models.WorkerQueueSize),
		redisQueueKey: "recovery:queue",
		deadLetterKey: "recovery:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     batchSize,
		logger:        logging.Component(logger, "recovery_worker"),
	}
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
// A task of the same type already queued for the booking makes this a no-op.
func (w *RecoveryWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, payload any) error {
	switch taskType {
	case TaskConfirmPayment, TaskRetrySaga:
	case "":
		return errors.New("task type is required")
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
	if bookingID == "" {
		return errors.New("booking id is required")
	}

	open, err := w.store.HasOpenRecoveryTask(ctx, taskType, bookingID)
	if err != nil {
		return err
	}
	if open {
		w.logger.Debug().Str("task_type", taskType).Str("booking_id", bookingID).Msg("task already queued")
		return nil
	}

	raw := []byte("{}")
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
	}

	task := models.RecoveryTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(raw),
		Status:    models.TaskPending,
	}
	if err := w.store.CreateRecoveryTask(ctx, &task); err != nil {
		return fmt.Errorf("persist recovery task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// EnqueueConfirmPayment hands a paid booking to the worker.
func (w *RecoveryWorker) EnqueueConfirmPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) error {
	return w.EnqueueTask(ctx, TaskConfirmPayment, bookingID, confirmPaymentPayload{Evidence: evidence})
}

// Start runs the main loop until ctx is done.
func (w *RecoveryWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("recovery worker started")
	defer w.logger.Info().Msg("recovery worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.ProcessPending(ctx); n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessPending handles one batch of due tasks from the database and returns how many it saw.
func (w *RecoveryWorker) ProcessPending(ctx context.Context) int {
	tasks, err := w.store.GetPendingRecoveryTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending recovery tasks")
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *RecoveryWorker) tryLocalQueue() (models.RecoveryTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.RecoveryTask{}, false
	}
}

func (w *RecoveryWorker) tryRedis(ctx context.Context) (models.RecoveryTask, bool) {
	if w.redis == nil {
		return models.RecoveryTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.RecoveryTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.RecoveryTask{}, false
	}
	if len(res) != 2 {
		return models.RecoveryTask{}, false
	}
	var task models.RecoveryTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.RecoveryTask{}, false
	}
	return task, true
}

func (w *RecoveryWorker) processTask(ctx context.Context, task *models.RecoveryTask) {
	// the same task may arrive from a queue and from polling
	current, err := w.store.GetRecoveryTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("reload recovery task")
		return
	}
	if current.Status == models.TaskCompleted || current.Status == models.TaskFailed {
		return
	}
	*task = *current

	log := w.logger.With().Int64("task_id", task.ID).Str("task_type", task.TaskType).Str("booking_id", task.BookingID).Logger()

	if err := w.handleTask(ctx, task); err != nil {
		if isPermanent(err) {
			log.Warn().Err(err).Msg("recovery task failed permanently")
			w.failTask(ctx, task, err)
			return
		}
		log.Warn().Err(err).Int("attempt", task.RetryCount+1).Msg("recovery task failed, will retry")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncRecoveryTask(task.TaskType, models.TaskCompleted)
	if err := w.store.UpdateRecoveryTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("mark completed")
	}
}

func (w *RecoveryWorker) handleTask(ctx context.Context, task *models.RecoveryTask) error {
	switch task.TaskType {
	case TaskConfirmPayment:
		var payload confirmPaymentPayload
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		_, err := w.confirmer.ConfirmWithPayment(ctx, task.BookingID, payload.Evidence)
		return err
	case TaskRetrySaga:
		_, err := w.confirmer.Retry(ctx, task.BookingID)
		return err
	default:
		return permanent(fmt.Errorf("unknown task type: %s", task.TaskType))
	}
}

func (w *RecoveryWorker) retryOrFail(ctx context.Context, task *models.RecoveryTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncRecoveryTask(task.TaskType, models.TaskRetry)
	nextTime := w.retryPolicy.NextAttemptAt(time.Now(), attempt)
	if err := w.store.UpdateRecoveryTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *RecoveryWorker) failTask(ctx context.Context, task *models.RecoveryTask, cause error) {
	metrics.IncRecoveryTask(task.TaskType, models.TaskFailed)
	if err := w.store.UpdateRecoveryTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}

func (w *RecoveryWorker) pushRedis(ctx context.Context, key string, task models.RecoveryTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

// isPermanent reports errors that no amount of retrying will fix.
func isPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe) ||
		errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, service.ErrInvalidTransition)
}
