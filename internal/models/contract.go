package models

import "time"

// SmartContract is the service agreement generated when a booking is confirmed.
// Terms is the hashed part; it must not change after creation.
type SmartContract struct {
	ID                 string               `json:"id"`
	BookingID          string               `json:"booking_id"`
	Parties            ContractParties      `json:"parties"`
	EventDetails       ContractEventDetails `json:"event_details"`
	Terms              ContractTerms        `json:"terms"`
	CanonicalHash      string               `json:"canonical_hash"`
	TermsHash          string               `json:"terms_hash"`
	Summary            string               `json:"summary"`
	Status             string               `json:"status"`
	PreSignedByEnabler bool                 `json:"pre_signed_by_enabler"`
	CreatedAt          time.Time            `json:"created_at"`
}

type ContractParties struct {
	Host    ContractParty `json:"host"`
	Enabler ContractParty `json:"enabler"`
}

type ContractParty struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Category string `json:"category,omitempty"`
}

type ContractEventDetails struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	EventType  string    `json:"event_type,omitempty"`
	Date       time.Time `json:"date"`
	Location   string    `json:"location"`
	GuestCount int       `json:"guest_count"`
}

type ContractTerms struct {
	Pricing           PricingTerms       `json:"pricing_terms"`
	Performance       PerformanceTerms   `json:"performance_terms"`
	Cancellation      CancellationPolicy `json:"cancellation_policy"`
	DisputeResolution DisputeResolution  `json:"dispute_resolution"`
}

type PricingTerms struct {
	TotalAmount     float64              `json:"total_amount"`
	Currency        string               `json:"currency"`
	PackageID       string               `json:"package_id,omitempty"`
	DepositSchedule []PaymentInstallment `json:"deposit_schedule"`
}

type PaymentInstallment struct {
	Label      string  `json:"label"`
	Percentage int     `json:"percentage"`
	Amount     float64 `json:"amount"`
	Due        string  `json:"due"`
}

type PerformanceTerms struct {
	KPIs                 []KPI `json:"kpis"`
	ArrivalBufferMinutes int   `json:"arrival_buffer_minutes"`
	ProofOfDelivery      bool  `json:"proof_of_delivery_required"`
}

type KPI struct {
	Metric      string `json:"metric"`
	Target      string `json:"target"`
	Measurement string `json:"measurement"`
}

type CancellationPolicy struct {
	Schedule             []CancellationTier `json:"schedule"`
	VendorPenaltyPercent int                `json:"vendor_penalty_percent"`
	VendorPenaltyAmount  float64            `json:"vendor_penalty_amount"`
}

// CancellationTier refunds RefundPercent when the host cancels at least DaysBefore days ahead.
type CancellationTier struct {
	DaysBefore    int `json:"days_before"`
	RefundPercent int `json:"refund_percent"`
}

type DisputeResolution struct {
	Method              string `json:"method"`
	Forum               string `json:"forum"`
	EvidenceWindowHours int    `json:"evidence_window_hours"`
	Clause              string `json:"clause"`
}
