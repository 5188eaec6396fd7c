package repository

import (
	"context"
	"sync"

	"github.com/esperanza/donation-gateway/internal/domain"
)

// MockDonationRepository is a hand-written, in-memory implementation of
// DonationRepository used in unit tests. No mock-generation library needed.
type MockDonationRepository struct {
	mu        sync.RWMutex
	donations map[string]*domain.Donation

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr        error
	RecordOutcomeErr error
}

func NewMockDonationRepository() *MockDonationRepository {
	return &MockDonationRepository{donations: make(map[string]*domain.Donation)}
}

func (m *MockDonationRepository) Create(_ context.Context, d *domain.Donation) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.donations[d.Reference]; exists {
		return domain.ErrDuplicateReference
	}
	clone := *d
	m.donations[d.Reference] = &clone
	return nil
}

func (m *MockDonationRepository) GetByReference(_ context.Context, reference string) (*domain.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.donations[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *MockDonationRepository) RecordOutcome(_ context.Context, reference string, status domain.Status, transactionID *string, rawResponse string) error {
	if m.RecordOutcomeErr != nil {
		return m.RecordOutcomeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[reference]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	d.TransactionID = transactionID
	d.GatewayResponse = &rawResponse
	return nil
}

type logKey struct {
	reference string
	kind      domain.NotificationKind
}

// MockNotificationLogRepository mirrors the pg implementation's upsert
// semantics in memory, including the "sent is never overwritten" guard.
type MockNotificationLogRepository struct {
	mu      sync.RWMutex
	entries map[logKey]*domain.NotificationLogEntry

	FindErr   error
	UpsertErr error
}

func NewMockNotificationLogRepository() *MockNotificationLogRepository {
	return &MockNotificationLogRepository{entries: make(map[logKey]*domain.NotificationLogEntry)}
}

func (m *MockNotificationLogRepository) Find(_ context.Context, reference string, kind domain.NotificationKind) (*domain.NotificationLogEntry, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[logKey{reference, kind}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockNotificationLogRepository) Upsert(_ context.Context, e *domain.NotificationLogEntry) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := logKey{e.Reference, e.Kind}
	if existing, ok := m.entries[key]; ok {
		if existing.Status == domain.NotificationSent {
			return nil
		}
		existing.Status = e.Status
		existing.ErrorMessage = e.ErrorMessage
		existing.Attempts++
		existing.RecordedAt = e.RecordedAt
		return nil
	}
	clone := *e
	clone.Attempts = 1
	m.entries[key] = &clone
	return nil
}

func (m *MockNotificationLogRepository) FindFailed(_ context.Context, maxAttempts int) ([]*domain.NotificationLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NotificationLogEntry
	for _, e := range m.entries {
		if e.Status == domain.NotificationFailed && e.Attempts < maxAttempts {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

// MockSettingsRepository returns a fixed settings row, or ErrNotFound when
// none is set, matching the "absence falls back to defaults" contract.
type MockSettingsRepository struct {
	Settings *domain.NotificationSettings
	Err      error
}

func (m *MockSettingsRepository) GetActive(_ context.Context) (*domain.NotificationSettings, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Settings == nil {
		return nil, domain.ErrNotFound
	}
	clone := *m.Settings
	return &clone, nil
}
