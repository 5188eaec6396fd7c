package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esperanza/donation-gateway/internal/domain"
)

type pgNotificationLogRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationLogRepository returns a NotificationLogRepository backed
// by PostgreSQL. The primary key on (reference, kind) is the datastore-level
// safety net against concurrent double-send.
func NewPgNotificationLogRepository(pool *pgxpool.Pool) NotificationLogRepository {
	return &pgNotificationLogRepository{pool: pool}
}

func (r *pgNotificationLogRepository) Find(ctx context.Context, reference string, kind domain.NotificationKind) (*domain.NotificationLogEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT reference, kind, status, error_message, attempts, recorded_at
		FROM notification_log WHERE reference = $1 AND kind = $2`, reference, kind)

	var e domain.NotificationLogEntry
	err := row.Scan(&e.Reference, &e.Kind, &e.Status, &e.ErrorMessage, &e.Attempts, &e.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find log entry: %w", err)
	}
	return &e, nil
}

// Upsert inserts or updates the entry for (reference, kind). A row that has
// already reached "sent" is never overwritten: a racing second dispatch may
// fail its send and try to record "failed", and the sent record must win.
func (r *pgNotificationLogRepository) Upsert(ctx context.Context, e *domain.NotificationLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_log (reference, kind, status, error_message, attempts, recorded_at)
		VALUES ($1,$2,$3,$4,1,$5)
		ON CONFLICT (reference, kind) DO UPDATE
		SET status        = EXCLUDED.status,
		    error_message = EXCLUDED.error_message,
		    attempts      = notification_log.attempts + 1,
		    recorded_at   = EXCLUDED.recorded_at
		WHERE notification_log.status <> 'sent'`,
		e.Reference, e.Kind, e.Status, e.ErrorMessage, e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert log entry: %w", err)
	}
	return nil
}

func (r *pgNotificationLogRepository) FindFailed(ctx context.Context, maxAttempts int) ([]*domain.NotificationLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT reference, kind, status, error_message, attempts, recorded_at
		FROM notification_log
		WHERE status = 'failed' AND attempts < $1
		ORDER BY recorded_at ASC
		LIMIT 100`, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("find failed log entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.NotificationLogEntry
	for rows.Next() {
		var e domain.NotificationLogEntry
		if err := rows.Scan(&e.Reference, &e.Kind, &e.Status, &e.ErrorMessage, &e.Attempts, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
