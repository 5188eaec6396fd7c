package domain

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Status tracks the lifecycle of a donation as seen by the gateway.
type Status string

const (
	StatusReceived   Status = "received"
	StatusAuthorized Status = "authorized"
	StatusPending    Status = "pending"
	StatusDeclined   Status = "declined"
	StatusFailed     Status = "failed"
)

// Donation is the core domain entity: one card payment attempt by one donor.
type Donation struct {
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	DonorName       string     `json:"donor_name"`
	DonorEmail      string     `json:"donor_email,omitempty"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Status          Status     `json:"status"`
	TransactionID   *string    `json:"transaction_id,omitempty"`
	CardBrand       *string    `json:"card_brand,omitempty"`
	CardLast4       *string    `json:"card_last4,omitempty"`
	GatewayResponse *string    `json:"gateway_response,omitempty"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Notification projects the donation into the payload the dispatcher needs.
func (d *Donation) Notification() DonationNotification {
	occurredAt := d.CreatedAt
	if d.AuthorizedAt != nil {
		occurredAt = *d.AuthorizedAt
	}
	return DonationNotification{
		DonorName:     d.DonorName,
		DonorEmail:    d.DonorEmail,
		Amount:        d.Amount,
		Currency:      d.Currency,
		Reference:     d.Reference,
		TransactionID: d.TransactionID,
		CardBrand:     d.CardBrand,
		CardLast4:     d.CardLast4,
		OccurredAt:    occurredAt,
	}
}

// DonationNotification carries everything the dispatcher needs to render and
// deliver the payment emails for one donation. Reference is the unique
// business key; it doubles as the idempotency key for notification bookkeeping.
type DonationNotification struct {
	DonorName     string
	DonorEmail    string
	Amount        string
	Currency      string
	Reference     string
	TransactionID *string
	CardBrand     *string
	CardLast4     *string
	OccurredAt    time.Time
}

// NotificationKind names a notification channel in the idempotency log.
type NotificationKind string

const KindPayment NotificationKind = "payment"

// NotificationStatus is the terminal state of one dispatch attempt.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// NotificationLogEntry records the outcome of notification dispatch for one
// donation. At most one "sent" entry may ever exist per (Reference, Kind);
// the composite key's uniqueness constraint is the sole deduplication
// mechanism across processes.
type NotificationLogEntry struct {
	Reference    string             `json:"reference"`
	Kind         NotificationKind   `json:"kind"`
	Status       NotificationStatus `json:"status"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	Attempts     int                `json:"attempts"`
	RecordedAt   time.Time          `json:"recorded_at"`
}

// NotificationSettings is the single active delivery configuration row.
// Nil template fields fall back to the built-in defaults.
type NotificationSettings struct {
	SenderName           string   `json:"sender_name"`
	SenderEmail          string   `json:"sender_email"`
	AccountingEnabled    bool     `json:"accounting_enabled"`
	DonorEnabled         bool     `json:"donor_enabled"`
	AccountingRecipients []string `json:"accounting_recipients"`
	AccountingSubject    *string  `json:"accounting_subject,omitempty"`
	AccountingBody       *string  `json:"accounting_body,omitempty"`
	DonorSubject         *string  `json:"donor_subject,omitempty"`
	DonorBody            *string  `json:"donor_body,omitempty"`
}

// CreateDonationRequest is the inbound payload for a donation submission.
// The card never reaches this service in the clear: the browser wizard
// tokenizes it and hands over only the transient token.
type CreateDonationRequest struct {
	DonorName      string `json:"donor_name"`
	DonorEmail     string `json:"donor_email,omitempty"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	TransientToken string `json:"transient_token"`
	CardBrand      string `json:"card_brand,omitempty"`
	CardLast4      string `json:"card_last4,omitempty"`
}

var (
	amountPattern   = regexp.MustCompile(`^[0-9]+\.[0-9]{2}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

func (r *CreateDonationRequest) Validate() error {
	if r.DonorName == "" {
		return ErrInvalidDonor
	}
	if !amountPattern.MatchString(r.Amount) {
		return ErrInvalidAmount
	}
	if !currencyPattern.MatchString(r.Currency) {
		return ErrInvalidCurrency
	}
	if r.TransientToken == "" {
		return ErrMissingToken
	}
	return nil
}

const referenceAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewReference builds a donation reference like "DON-1700000000-ab12cd".
// Uniqueness is enforced by the donations table; the random suffix only
// disambiguates submissions landing on the same second.
func NewReference(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = referenceAlphabet[rand.Intn(len(referenceAlphabet))]
	}
	return fmt.Sprintf("DON-%d-%s", now.Unix(), suffix)
}
