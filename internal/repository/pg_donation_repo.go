package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esperanza/donation-gateway/internal/domain"
)

type pgDonationRepository struct {
	pool *pgxpool.Pool
}

// NewPgDonationRepository returns a DonationRepository backed by PostgreSQL.
func NewPgDonationRepository(pool *pgxpool.Pool) DonationRepository {
	return &pgDonationRepository{pool: pool}
}

func (r *pgDonationRepository) Create(ctx context.Context, d *domain.Donation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO donations
			(id, reference, donor_name, donor_email, amount, currency, status,
			 card_brand, card_last4, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.Reference, d.DonorName, d.DonorEmail, d.Amount, d.Currency, d.Status,
		d.CardBrand, d.CardLast4, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "donations_reference_key") {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (r *pgDonationRepository) GetByReference(ctx context.Context, reference string) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, reference, donor_name, donor_email, amount, currency, status,
		       transaction_id, card_brand, card_last4, gateway_response,
		       authorized_at, created_at, updated_at
		FROM donations WHERE reference = $1`, reference)

	var d domain.Donation
	err := row.Scan(
		&d.ID, &d.Reference, &d.DonorName, &d.DonorEmail, &d.Amount, &d.Currency,
		&d.Status, &d.TransactionID, &d.CardBrand, &d.CardLast4, &d.GatewayResponse,
		&d.AuthorizedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return &d, nil
}

func (r *pgDonationRepository) RecordOutcome(ctx context.Context, reference string, status domain.Status, transactionID *string, rawResponse string) error {
	var authorizedAt *time.Time
	if status == domain.StatusAuthorized || status == domain.StatusPending {
		now := time.Now().UTC()
		authorizedAt = &now
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE donations
		SET status = $1, transaction_id = $2, gateway_response = $3,
		    authorized_at = COALESCE(authorized_at, $4), updated_at = NOW()
		WHERE reference = $5`,
		status, transactionID, rawResponse, authorizedAt, reference,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
