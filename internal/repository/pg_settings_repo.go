package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esperanza/donation-gateway/internal/domain"
)

type pgSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPgSettingsRepository returns a SettingsRepository backed by PostgreSQL.
// The admin UI writes this table; this service only ever reads it.
func NewPgSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &pgSettingsRepository{pool: pool}
}

func (r *pgSettingsRepository) GetActive(ctx context.Context) (*domain.NotificationSettings, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT sender_name, sender_email, accounting_enabled, donor_enabled,
		       accounting_recipients, accounting_subject, accounting_body,
		       donor_subject, donor_body
		FROM notification_settings
		WHERE active
		ORDER BY updated_at DESC
		LIMIT 1`)

	var s domain.NotificationSettings
	err := row.Scan(
		&s.SenderName, &s.SenderEmail, &s.AccountingEnabled, &s.DonorEnabled,
		&s.AccountingRecipients, &s.AccountingSubject, &s.AccountingBody,
		&s.DonorSubject, &s.DonorBody,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}
	return &s, nil
}
