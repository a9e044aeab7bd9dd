package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveSaga("ABE", "success", 120*time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(sagaSteps.WithLabelValues("contract", "failed"))
	IncSagaStep("contract", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(sagaSteps.WithLabelValues("contract", "failed")))

	before = testutil.ToFloat64(confirmations.WithLabelValues("already_confirmed"))
	IncConfirmation("already_confirmed")
	assert.Equal(t, before+1, testutil.ToFloat64(confirmations.WithLabelValues("already_confirmed")))

	before = testutil.ToFloat64(recoveryTasks.WithLabelValues("retry_saga", "completed"))
	IncRecoveryTask("retry_saga", "completed")
	assert.Equal(t, before+1, testutil.ToFloat64(recoveryTasks.WithLabelValues("retry_saga", "completed")))
}
