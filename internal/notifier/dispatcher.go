package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/mailer"
	"github.com/esperanza/donation-gateway/internal/repository"
)

// DispatchResult reports what one dispatch attempt did.
type DispatchResult struct {
	Skipped        bool                      `json:"skipped"`
	Reason         string                    `json:"reason,omitempty"`
	AccountingSent int                       `json:"accounting_sent"`
	DonorSent      bool                      `json:"donor_sent"`
	Status         domain.NotificationStatus `json:"status,omitempty"`
}

// defaultSettings is the fallback when no active configuration row exists.
// Donor thank-you mail defaults on; accounting mail needs recipients, which
// only configuration can supply.
func defaultSettings() *domain.NotificationSettings {
	return &domain.NotificationSettings{
		SenderName:        "Fundación Esperanza",
		SenderEmail:       "donaciones@esperanza.org",
		AccountingEnabled: true,
		DonorEnabled:      true,
	}
}

// Dispatcher decides, per donation reference, whether the payment emails
// still need to be sent, sends them, and records the outcome idempotently.
//
// The state machine per reference is
// NOT_SENT → (check log) → ALREADY_SENT | SENDING → SENT | FAILED.
// The check and the final log write are not one atomic transaction; the
// uniqueness constraint on (reference, kind) in the log is the true guard
// against double-send under races.
type Dispatcher struct {
	log      repository.NotificationLogRepository
	settings repository.SettingsRepository
	sender   mailer.Sender
	logger   *zap.Logger
	now      func() time.Time
}

func NewDispatcher(
	log repository.NotificationLogRepository,
	settings repository.SettingsRepository,
	sender mailer.Sender,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{log: log, settings: settings, sender: sender, logger: logger, now: time.Now}
}

// Dispatch delivers the accounting and donor emails for n, at most once per
// reference. Send failures are captured in the log entry and the result, not
// returned; a non-nil error means the idempotency log itself was unreachable
// and the attempt should be retried as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.DonationNotification) (DispatchResult, error) {
	entry, err := d.log.Find(ctx, n.Reference, domain.KindPayment)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return DispatchResult{}, fmt.Errorf("notification log lookup: %w", err)
	}
	if entry != nil && entry.Status == domain.NotificationSent {
		return DispatchResult{Skipped: true, Reason: "already_notified"}, nil
	}

	settings, err := d.settings.GetActive(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			// Unreachable settings must not block the dispatch either.
			d.logger.Warn("settings lookup failed, using defaults", zap.Error(err))
		}
		settings = defaultSettings()
	}

	accSubject, accBody, donorSubject, donorBody := resolveTemplates(settings)

	var (
		result   DispatchResult
		sendErrs []string
	)

	// Accounting first, donor second; the order is part of the contract.
	if settings.AccountingEnabled && len(settings.AccountingRecipients) > 0 {
		subject := render(accSubject, n)
		body := render(accBody, n)
		for _, recipient := range settings.AccountingRecipients {
			msg := mailer.Message{
				FromName: settings.SenderName,
				From:     settings.SenderEmail,
				To:       recipient,
				Subject:  subject,
				HTMLBody: body,
			}
			if err := d.sender.Send(ctx, msg); err != nil {
				d.logger.Warn("accounting email failed",
					zap.String("reference", n.Reference),
					zap.String("recipient", recipient),
					zap.Error(err))
				sendErrs = append(sendErrs, fmt.Sprintf("accounting %s: %v", recipient, err))
				continue
			}
			result.AccountingSent++
		}
	}

	if settings.DonorEnabled && n.DonorEmail != "" {
		msg := mailer.Message{
			FromName: settings.SenderName,
			From:     settings.SenderEmail,
			To:       n.DonorEmail,
			Subject:  render(donorSubject, n),
			HTMLBody: render(donorBody, n),
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("donor email failed",
				zap.String("reference", n.Reference),
				zap.Error(err))
			sendErrs = append(sendErrs, fmt.Sprintf("donor %s: %v", n.DonorEmail, err))
		} else {
			result.DonorSent = true
		}
	}

	// The log write is the definitive last writer, recorded after both
	// channels have been attempted.
	newEntry := &domain.NotificationLogEntry{
		Reference:  n.Reference,
		Kind:       domain.KindPayment,
		Status:     domain.NotificationSent,
		RecordedAt: d.now().UTC(),
	}
	if len(sendErrs) > 0 {
		joined := strings.Join(sendErrs, "; ")
		newEntry.Status = domain.NotificationFailed
		newEntry.ErrorMessage = &joined
	}
	if err := d.log.Upsert(ctx, newEntry); err != nil {
		return result, fmt.Errorf("record notification outcome: %w", err)
	}

	result.Status = newEntry.Status
	return result, nil
}
