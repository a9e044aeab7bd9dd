// Package money does escrow arithmetic in integer minor units.
package money

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultCommissionRate  = 0.10
	DefaultEscrowHoldHours = 72
)

// Split is the division of a booking total between platform and enabler.
type Split struct {
	AmountCents     int64
	CommissionCents int64
	PayoutCents     int64
}

// Balanced reports whether commission and payout add up to the amount.
func (s Split) Balanced() bool {
	return s.AmountCents == s.CommissionCents+s.PayoutCents
}

type Calculator struct {
	CommissionRate float64
	HoldPeriod     time.Duration
}

func NewCalculator(commissionRate float64, holdHours int) (*Calculator, error) {
	if commissionRate < 0 || commissionRate >= 1 {
		return nil, fmt.Errorf("commission rate must be in [0, 1), got %v", commissionRate)
	}
	if holdHours < 0 {
		return nil, fmt.Errorf("hold hours must not be negative, got %d", holdHours)
	}
	return &Calculator{
		CommissionRate: commissionRate,
		HoldPeriod:     time.Duration(holdHours) * time.Hour,
	}, nil
}

// Default returns the marketplace calculator: 10% commission, 72h hold.
func Default() *Calculator {
	return &Calculator{CommissionRate: DefaultCommissionRate, HoldPeriod: DefaultEscrowHoldHours * time.Hour}
}

// Split computes the escrow amounts for a total expressed in major units.
// The payout is derived by subtraction so the three values always balance.
func (c *Calculator) Split(total float64) (Split, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return Split{}, fmt.Errorf("invalid total amount %v", total)
	}
	if total < 0 {
		return Split{}, fmt.Errorf("total amount must not be negative, got %v", total)
	}

	amount := ToCents(total)
	commission := int64(math.Round(total * c.CommissionRate * 100))
	return Split{
		AmountCents:     amount,
		CommissionCents: commission,
		PayoutCents:     amount - commission,
	}, nil
}

// HoldUntil is the earliest release time for funds of an event on eventDate.
func (c *Calculator) HoldUntil(eventDate time.Time) time.Time {
	return eventDate.UTC().Add(c.HoldPeriod)
}

func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
