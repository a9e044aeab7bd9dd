package models

import "time"

// EscrowAccount holds booking funds in integer minor units until release.
type EscrowAccount struct {
	ID                   string       `json:"id"`
	BookingID            string       `json:"booking_id"`
	ContractID           string       `json:"contract_id,omitempty"`
	AmountCents          int64        `json:"amount_cents"`
	Currency             string       `json:"currency"`
	CommissionRate       float64      `json:"commission_rate"`
	CommissionCents      int64        `json:"commission_cents"`
	EnablerPayoutCents   int64        `json:"enabler_payout_cents"`
	HoldUntil            time.Time    `json:"hold_until"`
	Status               string       `json:"status"`
	ReleaseRules         ReleaseRules `json:"release_rules"`
	ReconciliationStatus string       `json:"reconciliation_status"`
	CreatedAt            time.Time    `json:"created_at"`
}

type ReleaseRules struct {
	AutoReleaseOnCompletion bool     `json:"auto_release_on_completion"`
	RequireHostConfirmation bool     `json:"require_host_confirmation"`
	CompletionCriteria      []string `json:"completion_criteria"`
	SLAHours                int      `json:"sla_hours"`
}

// Balanced reports whether commission and payout add up to the held amount.
func (e *EscrowAccount) Balanced() bool {
	return e.AmountCents == e.CommissionCents+e.EnablerPayoutCents
}
