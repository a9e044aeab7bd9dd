package saga

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"eventplace/internal/canonhash"
	"eventplace/internal/models"
	"eventplace/internal/money"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMilestones(t *testing.T) {
	f := newFixture(t, false)
	ms := BuildMilestones(f.entities(), confirmedAt)

	require.Len(t, ms, 4)
	want := []struct {
		name string
		due  time.Time
	}{
		{MilestoneHostPreparation, confirmedAt.Add(24 * time.Hour)},
		{MilestoneEnablerReadiness, eventDate.Add(-48 * time.Hour)},
		{MilestoneServiceExecution, eventDate},
		{MilestonePostEventReview, eventDate.Add(24 * time.Hour)},
	}
	for i, w := range want {
		assert.Equal(t, w.name, ms[i].Name)
		assert.True(t, w.due.Equal(ms[i].DueDate), "%s due %s, got %s", w.name, w.due, ms[i].DueDate)
		assert.Equal(t, "pending", ms[i].Status)
	}
}

func TestContractStep_DeterministicHash(t *testing.T) {
	f := newFixture(t, false)
	logger := zerolog.Nop()
	s := NewContractStep(f.db, "USD", &logger)

	a, err := s.build(f.entities())
	require.NoError(t, err)
	b, err := s.build(f.entities())
	require.NoError(t, err)
	assert.Equal(t, a.CanonicalHash, b.CanonicalHash)

	want, err := canonhash.Sum(a.Terms)
	require.NoError(t, err)
	assert.Equal(t, want, a.CanonicalHash)

	assert.Equal(t, 500.0, a.Terms.Pricing.DepositSchedule[0].Amount)
	assert.Equal(t, 500.0, a.Terms.Pricing.DepositSchedule[1].Amount)
	assert.Equal(t, 200.0, a.Terms.Cancellation.VendorPenaltyAmount)

	f.booking.TotalAmount = 1200
	c, err := s.build(f.entities())
	require.NoError(t, err)
	assert.NotEqual(t, a.CanonicalHash, c.CanonicalHash)
}

func TestContractStep_OddAmountSplitsExactly(t *testing.T) {
	f := newFixture(t, false)
	f.booking.TotalAmount = 100.01
	logger := zerolog.Nop()

	c, err := NewContractStep(f.db, "", &logger).build(f.entities())
	require.NoError(t, err)

	sched := c.Terms.Pricing.DepositSchedule
	assert.Equal(t, money.ToCents(100.01), money.ToCents(sched[0].Amount)+money.ToCents(sched[1].Amount))
	assert.Equal(t, "USD", c.Terms.Pricing.Currency)
}

func TestContractStep_InactiveContractFails(t *testing.T) {
	f := newFixture(t, false)
	logger := zerolog.Nop()
	s := NewContractStep(f.db, "USD", &logger)
	ctx := context.Background()

	var out Outputs
	first := s.Generate(ctx, f.entities(), &out)
	require.True(t, first.Succeeded(), first.Error)

	_, err := f.db.ExecContext(ctx, `UPDATE smart_contracts SET status = ? WHERE booking_id = ?`, models.ContractRetired, f.booking.ID)
	require.NoError(t, err)

	var again Outputs
	res := s.Generate(ctx, f.entities(), &again)
	assert.Equal(t, StepFailed, res.Status)
	assert.Contains(t, res.Error, out.ContractID)
	assert.Contains(t, res.Error, "is RETIRED")
	assert.Empty(t, again.ContractID)
}

func TestEscrowStep_Reuse(t *testing.T) {
	f := newFixture(t, false)
	logger := zerolog.Nop()
	s := NewEscrowStep(f.db, money.Default(), "USD", &logger)
	ctx := context.Background()

	var out Outputs
	first := s.Lock(ctx, f.entities(), &out)
	require.True(t, first.Succeeded(), first.Error)
	id := out.EscrowID

	out = Outputs{}
	second := s.Lock(ctx, f.entities(), &out)
	require.True(t, second.Succeeded(), second.Error)
	assert.Equal(t, id, out.EscrowID)
	assert.Equal(t, true, second.Data["reused"])
	assert.Equal(t, "2025-06-04T18:00:00Z", second.Data["hold_until"])
}

func TestEscrowStep_NegativeTotal(t *testing.T) {
	f := newFixture(t, false)
	f.booking.TotalAmount = -5
	logger := zerolog.Nop()

	var out Outputs
	r := NewEscrowStep(f.db, money.Default(), "USD", &logger).Lock(context.Background(), f.entities(), &out)
	assert.False(t, r.Succeeded())
	assert.Empty(t, out.EscrowID)
}

func TestChecklistStep_NoWorkflowIsSilent(t *testing.T) {
	f := newFixture(t, false)
	logger := zerolog.Nop()
	s := NewChecklistStep(f.db, newFakeReasoner(), time.Second, &logger)

	r := s.GenerateChecklists(context.Background(), f.entities(), &Outputs{})
	assert.True(t, r.Succeeded(), r.Error)
	assert.Equal(t, 8, r.Data["enabler_tasks"])
	assert.Equal(t, 6, r.Data["host_tasks"])
}

func TestChecklistStep_EmptyOutputFails(t *testing.T) {
	f := newFixture(t, false)
	reasoner := newFakeReasoner()
	reasoner.host = `{"items":[]}`
	logger := zerolog.Nop()

	r := NewChecklistStep(f.db, reasoner, time.Second, &logger).GenerateChecklists(context.Background(), f.entities(), &Outputs{})
	assert.False(t, r.Succeeded())
	assert.Contains(t, r.Error, "host checklist")
}

func TestParseChecklist(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		spec        checklistSpec
		wantItems   int
		wantDropped int
	}{
		{
			name:      "wrapped object",
			raw:       checklistJSON(9, enablerChecklist.categories, ""),
			spec:      enablerChecklist,
			wantItems: 9,
		},
		{
			name:      "bare array",
			raw:       `[{"task":"Share parking info","required":true,"category":"venue_access"}]`,
			spec:      hostChecklist,
			wantItems: 1,
		},
		{
			name:        "unknown category and blank task dropped",
			raw:         `{"items":[{"task":"ok","category":"materials"},{"task":"x","category":"catering"},{"task":"  ","category":"materials"}]}`,
			spec:        hostChecklist,
			wantItems:   1,
			wantDropped: 2,
		},
		{
			name:        "truncated to max",
			raw:         checklistJSON(15, enablerChecklist.categories, ""),
			spec:        enablerChecklist,
			wantItems:   12,
			wantDropped: 3,
		},
		{
			name: "not a list",
			raw:  `{"items":"nope"}`,
			spec: hostChecklist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, dropped := parseChecklist(json.RawMessage(tt.raw), tt.spec)
			assert.Len(t, items, tt.wantItems)
			assert.Equal(t, tt.wantDropped, dropped)
			for _, it := range items {
				assert.Equal(t, tt.spec.withProof, it.TracksProof)
				assert.False(t, it.Completed)
			}
		})
	}
}

func TestExecutionLog(t *testing.T) {
	at := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	l := &ExecutionLog{Status: ExecutionSuccess, StartedAt: at, CompletedAt: at.Add(3 * time.Second)}
	l.append(succeeded(StepContract, at, nil))
	l.append(succeeded(StepEscrow, at, nil))

	assert.True(t, l.AllSucceeded())
	assert.False(t, l.HasPartialFailures())
	assert.Equal(t, 3*time.Second, l.Duration())

	l.append(failed(StepChecklist, at, assert.AnError))
	assert.False(t, l.AllSucceeded())
	assert.True(t, l.HasPartialFailures())
	assert.Equal(t, []string{StepChecklist}, l.FailedSteps())

	s, ok := l.Step(StepChecklist)
	require.True(t, ok)
	assert.Equal(t, assert.AnError.Error(), s.Error)

	_, ok = l.Step(StepNotification)
	assert.False(t, ok)

	aborted := &ExecutionLog{Status: ExecutionFailure}
	assert.False(t, aborted.AllSucceeded())
	assert.False(t, aborted.HasPartialFailures())
}
