package repository

import (
	"context"

	"github.com/esperanza/donation-gateway/internal/domain"
)

// DonationRepository defines persistence operations for donation records.
// The pgx implementation is in pg_donation_repo.go; tests use the
// hand-written mock in mock_repos.go.
type DonationRepository interface {
	Create(ctx context.Context, d *domain.Donation) error
	GetByReference(ctx context.Context, reference string) (*domain.Donation, error)
	RecordOutcome(ctx context.Context, reference string, status domain.Status, transactionID *string, rawResponse string) error
}

// NotificationLogRepository is the idempotency log collaborator. The
// uniqueness constraint on (reference, kind) is the sole cross-process
// double-send guard; Upsert must never downgrade a "sent" entry.
type NotificationLogRepository interface {
	Find(ctx context.Context, reference string, kind domain.NotificationKind) (*domain.NotificationLogEntry, error)
	Upsert(ctx context.Context, entry *domain.NotificationLogEntry) error
	FindFailed(ctx context.Context, maxAttempts int) ([]*domain.NotificationLogEntry, error)
}

// SettingsRepository supplies the single active delivery configuration row.
// GetActive returns domain.ErrNotFound when none is configured; callers fall
// back to built-in defaults and never fail a dispatch over missing settings.
type SettingsRepository interface {
	GetActive(ctx context.Context) (*domain.NotificationSettings, error)
}
