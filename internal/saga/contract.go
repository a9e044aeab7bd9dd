package saga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"eventplace/internal/canonhash"
	"eventplace/internal/database"
	"eventplace/internal/domain"
	"eventplace/internal/models"
	"eventplace/internal/money"

	"github.com/rs/zerolog"
)

const (
	vendorPenaltyPercent = 20
	arrivalBufferMinutes = 60
	evidenceWindowHours  = 72
	arbitrationClause    = "Any dispute arising from this agreement shall first be submitted to platform mediation. " +
		"Unresolved disputes shall be settled by binding arbitration under the platform dispute rules; " +
		"escrowed funds remain held until the arbitrator's decision."
)

var cancellationSchedule = []models.CancellationTier{
	{DaysBefore: 30, RefundPercent: 100},
	{DaysBefore: 14, RefundPercent: 50},
	{DaysBefore: 7, RefundPercent: 25},
	{DaysBefore: 0, RefundPercent: 0},
}

var performanceKPIs = []models.KPI{
	{Metric: "punctuality", Target: "on site 60 minutes before start", Measurement: "check-in timestamp"},
	{Metric: "service_quality", Target: "host rating >= 4.5/5", Measurement: "post-event review"},
	{Metric: "communication", Target: "reply within 24 hours", Measurement: "message response time"},
	{Metric: "scope_delivery", Target: "100% of package items delivered", Measurement: "checklist completion"},
}

// ContractStep produces the service agreement for a confirmed booking.
type ContractStep struct {
	store    domain.LedgerStore
	currency string
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewContractStep(store domain.LedgerStore, currency string, logger *zerolog.Logger) *ContractStep {
	if currency == "" {
		currency = "USD"
	}
	return &ContractStep{store: store, currency: currency, logger: logger, now: time.Now}
}

// Generate persists an ACTIVE contract, or reuses the one a previous run created.
func (s *ContractStep) Generate(ctx context.Context, e Entities, out *Outputs) StepResult {
	at := s.now().UTC()

	existing, err := s.store.GetContractByBooking(ctx, e.Booking.ID)
	switch {
	case err == nil && existing.Status == models.ContractActive:
		out.ContractID, out.ContractHash = existing.ID, existing.CanonicalHash
		s.logger.Info().Str("booking_id", e.Booking.ID).Str("contract_id", existing.ID).Msg("reusing existing contract")
		return succeeded(StepContract, at, map[string]any{
			"contract_id":   existing.ID,
			"contract_hash": existing.CanonicalHash,
			"reused":        true,
		})
	case err == nil:
		// booking_id is unique, so a second contract cannot be inserted
		return failed(StepContract, at, fmt.Errorf("contract %s for booking %s is %s, not %s",
			existing.ID, e.Booking.ID, existing.Status, models.ContractActive))
	case !errors.Is(err, database.ErrNotFound):
		return failed(StepContract, at, fmt.Errorf("look up contract: %w", err))
	}

	contract, err := s.build(e)
	if err != nil {
		return failed(StepContract, at, err)
	}
	if err := s.store.CreateContract(ctx, contract); err != nil {
		return failed(StepContract, at, err)
	}

	out.ContractID, out.ContractHash = contract.ID, contract.CanonicalHash
	return succeeded(StepContract, at, map[string]any{
		"contract_id":   contract.ID,
		"contract_hash": contract.CanonicalHash,
	})
}

func (s *ContractStep) build(e Entities) (*models.SmartContract, error) {
	terms := s.terms(e.Booking)

	hash, err := canonhash.Sum(terms)
	if err != nil {
		return nil, fmt.Errorf("hash contract terms: %w", err)
	}

	return &models.SmartContract{
		BookingID: e.Booking.ID,
		Parties: models.ContractParties{
			Host: models.ContractParty{
				ID:     e.Host.ID,
				UserID: e.Host.ID,
				Name:   e.Host.FullName,
				Email:  e.Host.Email,
			},
			Enabler: models.ContractParty{
				ID:       e.Enabler.ID,
				UserID:   e.Enabler.UserID,
				Name:     e.Enabler.BusinessName,
				Category: e.Enabler.Category,
			},
		},
		EventDetails: models.ContractEventDetails{
			EventID:    e.Event.ID,
			Name:       e.Event.Name,
			EventType:  e.Event.EventType,
			Date:       e.Event.Date.UTC(),
			Location:   e.Event.Location,
			GuestCount: e.Event.GuestCount,
		},
		Terms:              terms,
		CanonicalHash:      hash,
		TermsHash:          hash,
		Summary:            summary(e, s.currency),
		Status:             models.ContractActive,
		PreSignedByEnabler: true,
	}, nil
}

func (s *ContractStep) terms(b *models.Booking) models.ContractTerms {
	total := b.TotalAmount
	deposit := money.FromCents(int64(math.Round(total * 50)))
	balance := money.FromCents(money.ToCents(total) - money.ToCents(deposit))
	penalty := money.FromCents(int64(math.Round(total * vendorPenaltyPercent)))

	return models.ContractTerms{
		Pricing: models.PricingTerms{
			TotalAmount: total,
			Currency:    s.currency,
			PackageID:   b.PackageID,
			DepositSchedule: []models.PaymentInstallment{
				{Label: "deposit", Percentage: 50, Amount: deposit, Due: "on_confirmation"},
				{Label: "balance", Percentage: 50, Amount: balance, Due: "on_completion"},
			},
		},
		Performance: models.PerformanceTerms{
			KPIs:                 performanceKPIs,
			ArrivalBufferMinutes: arrivalBufferMinutes,
			ProofOfDelivery:      true,
		},
		Cancellation: models.CancellationPolicy{
			Schedule:             cancellationSchedule,
			VendorPenaltyPercent: vendorPenaltyPercent,
			VendorPenaltyAmount:  penalty,
		},
		DisputeResolution: models.DisputeResolution{
			Method:              "arbitration",
			Forum:               "platform",
			EvidenceWindowHours: evidenceWindowHours,
			Clause:              arbitrationClause,
		},
	}
}

func summary(e Entities, currency string) string {
	return fmt.Sprintf("%s agrees to provide %s services to %s for %q on %s at %s for %.2f %s. "+
		"50%% deposit on confirmation, 50%% on completion. Full refund if cancelled 30+ days ahead.",
		e.Enabler.BusinessName, e.Enabler.Category, e.Host.FullName, e.Event.Name,
		e.Event.Date.UTC().Format(time.RFC1123), e.Event.Location, e.Booking.TotalAmount, currency)
}
