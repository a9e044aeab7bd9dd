package database

import (
	"context"
	"fmt"
	"time"

	"eventplace/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateContract(ctx context.Context, c *models.SmartContract) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	parties, err := marshalColumn(c.Parties)
	if err != nil {
		return fmt.Errorf("encode contract parties: %w", err)
	}
	details, err := marshalColumn(c.EventDetails)
	if err != nil {
		return fmt.Errorf("encode contract event details: %w", err)
	}
	terms, err := marshalColumn(c.Terms)
	if err != nil {
		return fmt.Errorf("encode contract terms: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO smart_contracts (
                id, booking_id, parties, event_details, terms, canonical_hash, terms_hash,
                summary, status, pre_signed_by_enabler, created_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		c.ID, c.BookingID, parties, details, terms, c.CanonicalHash, c.TermsHash,
		c.Summary, c.Status, c.PreSignedByEnabler, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", translate(err))
	}
	c.CreatedAt = now
	return nil
}

func (db *DB) GetContractByBooking(ctx context.Context, bookingID string) (*models.SmartContract, error) {
	var (
		c                       models.SmartContract
		parties, details, terms string
	)
	query := `SELECT id, booking_id, parties, event_details, terms, canonical_hash, terms_hash,
                     summary, status, pre_signed_by_enabler, created_at
              FROM smart_contracts WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&c.ID, &c.BookingID, &parties, &details, &terms, &c.CanonicalHash, &c.TermsHash,
		&c.Summary, &c.Status, &c.PreSignedByEnabler, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contract for booking %s: %w", bookingID, translate(err))
	}
	if err := unmarshalColumn(parties, &c.Parties); err != nil {
		return nil, fmt.Errorf("decode contract parties: %w", err)
	}
	if err := unmarshalColumn(details, &c.EventDetails); err != nil {
		return nil, fmt.Errorf("decode contract event details: %w", err)
	}
	if err := unmarshalColumn(terms, &c.Terms); err != nil {
		return nil, fmt.Errorf("decode contract terms: %w", err)
	}
	return &c, nil
}

func (db *DB) CreateEscrowAccount(ctx context.Context, e *models.EscrowAccount) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	rules, err := marshalColumn(e.ReleaseRules)
	if err != nil {
		return fmt.Errorf("encode release rules: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO escrow_accounts (
                id, booking_id, contract_id, amount_cents, currency, commission_rate, commission_cents,
                enabler_payout_cents, hold_until, status, release_rules, reconciliation_status, created_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		e.ID, e.BookingID, e.ContractID, e.AmountCents, e.Currency, e.CommissionRate, e.CommissionCents,
		e.EnablerPayoutCents, e.HoldUntil.UTC(), e.Status, rules, e.ReconciliationStatus, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create escrow account: %w", translate(err))
	}
	e.CreatedAt = now
	return nil
}

func (db *DB) GetEscrowByBooking(ctx context.Context, bookingID string) (*models.EscrowAccount, error) {
	var (
		e     models.EscrowAccount
		rules string
	)
	query := `SELECT id, booking_id, contract_id, amount_cents, currency, commission_rate, commission_cents,
                     enabler_payout_cents, hold_until, status, release_rules, reconciliation_status, created_at
              FROM escrow_accounts WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&e.ID, &e.BookingID, &e.ContractID, &e.AmountCents, &e.Currency, &e.CommissionRate, &e.CommissionCents,
		&e.EnablerPayoutCents, &e.HoldUntil, &e.Status, &rules, &e.ReconciliationStatus, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow for booking %s: %w", bookingID, translate(err))
	}
	if err := unmarshalColumn(rules, &e.ReleaseRules); err != nil {
		return nil, fmt.Errorf("decode release rules: %w", err)
	}
	e.HoldUntil = e.HoldUntil.UTC()
	return &e, nil
}
