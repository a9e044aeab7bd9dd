package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/models"
	"eventplace/internal/money"

	"github.com/rs/zerolog"
)

var completionCriteria = []string{"event_completed", "no_open_disputes", "host_validation_received"}

// EscrowStep places the booking total on hold until after the event.
type EscrowStep struct {
	store    domain.LedgerStore
	calc     *money.Calculator
	currency string
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewEscrowStep(store domain.LedgerStore, calc *money.Calculator, currency string, logger *zerolog.Logger) *EscrowStep {
	if calc == nil {
		calc = money.Default()
	}
	if currency == "" {
		currency = "USD"
	}
	return &EscrowStep{store: store, calc: calc, currency: currency, logger: logger, now: time.Now}
}

func (s *EscrowStep) Lock(ctx context.Context, e Entities, out *Outputs) StepResult {
	at := s.now().UTC()

	existing, err := s.store.GetEscrowByBooking(ctx, e.Booking.ID)
	switch {
	case err == nil:
		out.EscrowID = existing.ID
		s.logger.Info().Str("booking_id", e.Booking.ID).Str("escrow_id", existing.ID).Msg("reusing existing escrow account")
		return succeeded(StepEscrow, at, escrowData(existing, true))
	case !errors.Is(err, database.ErrNotFound):
		return failed(StepEscrow, at, fmt.Errorf("look up escrow: %w", err))
	}

	split, err := s.calc.Split(e.Booking.TotalAmount)
	if err != nil {
		return failed(StepEscrow, at, err)
	}

	account := &models.EscrowAccount{
		BookingID:          e.Booking.ID,
		ContractID:         out.ContractID,
		AmountCents:        split.AmountCents,
		Currency:           s.currency,
		CommissionRate:     s.calc.CommissionRate,
		CommissionCents:    split.CommissionCents,
		EnablerPayoutCents: split.PayoutCents,
		HoldUntil:          s.calc.HoldUntil(e.Event.Date),
		Status:             models.EscrowHold,
		ReleaseRules: models.ReleaseRules{
			AutoReleaseOnCompletion: true,
			RequireHostConfirmation: true,
			CompletionCriteria:      completionCriteria,
			SLAHours:                int(s.calc.HoldPeriod / time.Hour),
		},
		ReconciliationStatus: models.ReconciliationPending,
	}
	if !account.Balanced() {
		return failed(StepEscrow, at, fmt.Errorf("escrow split does not balance: %d != %d + %d",
			account.AmountCents, account.CommissionCents, account.EnablerPayoutCents))
	}

	if err := s.store.CreateEscrowAccount(ctx, account); err != nil {
		return failed(StepEscrow, at, err)
	}

	out.EscrowID = account.ID
	return succeeded(StepEscrow, at, escrowData(account, false))
}

func escrowData(a *models.EscrowAccount, reused bool) map[string]any {
	data := map[string]any{
		"escrow_id":    a.ID,
		"amount_cents": a.AmountCents,
		"hold_until":   a.HoldUntil.UTC().Format(time.RFC3339),
	}
	if reused {
		data["reused"] = true
	}
	return data
}
