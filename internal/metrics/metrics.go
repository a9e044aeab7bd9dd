package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventplace"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	sagaExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "executions_total",
			Help:      "Saga runs by engine and outcome.",
		},
		[]string{"engine", "status"},
	)

	sagaSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "steps_total",
			Help:      "Saga step results by step and status.",
		},
		[]string{"step", "status"},
	)

	sagaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "duration_seconds",
			Help:      "Wall time of a saga run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"engine"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation requests by outcome.",
		},
		[]string{"outcome"},
	)

	recoveryTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_tasks_total",
			Help:      "Processed recovery tasks by type and result.",
		},
		[]string{"type", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, sagaExecutions, sagaSteps, sagaDuration, confirmations, recoveryTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func ObserveSaga(engine, status string, elapsed time.Duration) {
	sagaExecutions.WithLabelValues(engine, status).Inc()
	sagaDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

func IncSagaStep(step, status string) {
	sagaSteps.WithLabelValues(step, status).Inc()
}

// IncConfirmation counts a confirmation outcome: confirmed, already_confirmed, rolled_back, rejected.
func IncConfirmation(outcome string) {
	confirmations.WithLabelValues(outcome).Inc()
}

func IncRecoveryTask(taskType, result string) {
	recoveryTasks.WithLabelValues(taskType, result).Inc()
}
