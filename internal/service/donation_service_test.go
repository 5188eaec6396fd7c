package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/gateway"
	"github.com/esperanza/donation-gateway/internal/mailer"
	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
	"github.com/esperanza/donation-gateway/internal/service"
)

// fakeGateway scripts the gateway outcomes and counts calls.
type fakeGateway struct {
	submitOutcome gateway.Outcome
	verifyOutcome gateway.Outcome
	submitCalls   int
}

func (f *fakeGateway) SubmitPayment(_ context.Context, _ []byte) gateway.Outcome {
	f.submitCalls++
	return f.submitOutcome
}

func (f *fakeGateway) VerifyCredentials(_ context.Context) gateway.Outcome {
	return f.verifyOutcome
}

// nopSender accepts every message.
type nopSender struct {
	mu   sync.Mutex
	sent int
}

func (s *nopSender) Send(_ context.Context, _ mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

type fixture struct {
	svc    *service.DonationService
	repo   *repository.MockDonationRepository
	gw     *fakeGateway
	q      *queue.DispatchQueue
	sender *nopSender
}

func newFixture(maxPerHour int) *fixture {
	repo := repository.NewMockDonationRepository()
	gw := &fakeGateway{}
	q := queue.New(16)
	sender := &nopSender{}

	dispatcher := notifier.NewDispatcher(
		repository.NewMockNotificationLogRepository(),
		&repository.MockSettingsRepository{},
		sender,
		zap.NewNop(),
	)
	limiter := ratelimiter.New(maxPerHour, time.Hour)
	svc := service.NewDonationService(repo, gw, dispatcher, q, limiter, zap.NewNop(), service.MetricHooks{})

	return &fixture{svc: svc, repo: repo, gw: gw, q: q, sender: sender}
}

var validReq = domain.CreateDonationRequest{
	DonorName:      "Ana López",
	DonorEmail:     "a@b.com",
	Amount:         "100.00",
	Currency:       "GTQ",
	TransientToken: "eyJhbGciOiJSUzI1NiJ9.token",
	CardBrand:      "VISA",
	CardLast4:      "4242",
}

func TestDonationService_Submit_Authorized(t *testing.T) {
	f := newFixture(5)
	f.gw.submitOutcome = gateway.Outcome{
		Kind:          gateway.OutcomeAuthorized,
		TransactionID: "txn-99",
		Status:        "AUTHORIZED",
		HTTPStatus:    201,
		RawResponse:   `{"id":"txn-99","status":"AUTHORIZED"}`,
	}

	d, outcome, err := f.svc.Submit(context.Background(), validReq, "203.0.113.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != gateway.OutcomeAuthorized {
		t.Fatalf("outcome kind = %s", outcome.Kind)
	}
	if d.Status != domain.StatusAuthorized {
		t.Fatalf("donation status = %s, want authorized", d.Status)
	}
	if d.TransactionID == nil || *d.TransactionID != "txn-99" {
		t.Fatalf("transaction id = %v", d.TransactionID)
	}
	if d.Reference == "" {
		t.Fatal("expected a generated reference")
	}

	stored, err := f.repo.GetByReference(context.Background(), d.Reference)
	if err != nil {
		t.Fatalf("donation not persisted: %v", err)
	}
	if stored.GatewayResponse == nil || *stored.GatewayResponse == "" {
		t.Fatal("raw gateway response must be kept for audit")
	}

	if f.q.Depth() != 1 {
		t.Fatalf("queue depth = %d, want 1 dispatch job", f.q.Depth())
	}
}

func TestDonationService_Submit_DeclinedDoesNotEnqueue(t *testing.T) {
	f := newFixture(5)
	f.gw.submitOutcome = gateway.Outcome{
		Kind:        gateway.OutcomeDeclined,
		HTTPStatus:  201,
		RawResponse: `{"id":"t1","status":"DECLINED"}`,
	}

	d, _, err := f.svc.Submit(context.Background(), validReq, "203.0.113.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != domain.StatusDeclined {
		t.Fatalf("donation status = %s, want declined", d.Status)
	}
	if f.q.Depth() != 0 {
		t.Fatal("declined payments must not trigger notifications")
	}
}

func TestDonationService_Submit_TransportErrorKeepsMessage(t *testing.T) {
	f := newFixture(5)
	f.gw.submitOutcome = gateway.Outcome{
		Kind:    gateway.OutcomeTransportError,
		Message: "gateway request: dial tcp: connection refused",
	}

	d, _, err := f.svc.Submit(context.Background(), validReq, "203.0.113.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != domain.StatusFailed {
		t.Fatalf("donation status = %s, want failed", d.Status)
	}
	if d.GatewayResponse == nil || *d.GatewayResponse == "" {
		t.Fatal("transport error message must be stored in place of a body")
	}
}

func TestDonationService_Submit_InvalidRequest(t *testing.T) {
	f := newFixture(5)

	tests := []struct {
		name    string
		mutate  func(*domain.CreateDonationRequest)
		wantErr error
	}{
		{"empty name", func(r *domain.CreateDonationRequest) { r.DonorName = "" }, domain.ErrInvalidDonor},
		{"bad amount", func(r *domain.CreateDonationRequest) { r.Amount = "100" }, domain.ErrInvalidAmount},
		{"bad currency", func(r *domain.CreateDonationRequest) { r.Currency = "quetzal" }, domain.ErrInvalidCurrency},
		{"no token", func(r *domain.CreateDonationRequest) { r.TransientToken = "" }, domain.ErrMissingToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validReq
			tc.mutate(&req)
			_, _, err := f.svc.Submit(context.Background(), req, "203.0.113.9")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if f.gw.submitCalls != 0 {
		t.Fatalf("invalid requests must never reach the gateway, got %d calls", f.gw.submitCalls)
	}
}

func TestDonationService_Submit_RateLimited(t *testing.T) {
	f := newFixture(1)
	f.gw.submitOutcome = gateway.Outcome{Kind: gateway.OutcomeAuthorized, TransactionID: "t"}

	if _, _, err := f.svc.Submit(context.Background(), validReq, "198.51.100.50"); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	_, _, err := f.svc.Submit(context.Background(), validReq, "198.51.100.50")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if f.gw.submitCalls != 1 {
		t.Fatalf("rate-limited request must not reach the gateway, got %d calls", f.gw.submitCalls)
	}

	// A different source is unaffected.
	if _, _, err := f.svc.Submit(context.Background(), validReq, "198.51.100.51"); err != nil {
		t.Fatalf("other source: %v", err)
	}
}

func TestDonationService_RetryNotification(t *testing.T) {
	f := newFixture(5)
	f.gw.submitOutcome = gateway.Outcome{Kind: gateway.OutcomeAuthorized, TransactionID: "txn-1"}

	d, _, err := f.svc.Submit(context.Background(), validReq, "203.0.113.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := f.svc.RetryNotification(context.Background(), d.Reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatal("first dispatch must not be skipped")
	}
	if !res.DonorSent {
		t.Fatal("donor email should be sent with default settings")
	}

	// The idempotency log makes a second retry a no-op.
	res, err = f.svc.RetryNotification(context.Background(), d.Reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatal("second retry must skip")
	}
	if f.sender.sent != 1 {
		t.Fatalf("sends = %d, want 1", f.sender.sent)
	}
}

func TestDonationService_RetryNotification_UnknownReference(t *testing.T) {
	f := newFixture(5)
	_, err := f.svc.RetryNotification(context.Background(), "DON-0-zzzzzz")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDonationService_VerifyCredentials(t *testing.T) {
	f := newFixture(5)
	f.gw.verifyOutcome = gateway.Outcome{
		Kind:       gateway.OutcomeServiceNotEnabled,
		HTTPStatus: 404,
		Message:    "contact the gateway operator",
	}

	outcome := f.svc.VerifyCredentials(context.Background())
	if outcome.Kind != gateway.OutcomeServiceNotEnabled {
		t.Fatalf("outcome kind = %s", outcome.Kind)
	}
}
