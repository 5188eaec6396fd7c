package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/gateway"
	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
)

// PaymentGateway is the slice of the gateway client the service depends on.
// Tests substitute a scripted fake instead of standing up an HTTP server.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, payload []byte) gateway.Outcome
	VerifyCredentials(ctx context.Context) gateway.Outcome
}

// MetricHooks carries the metric callbacks injected by main.
// Nil hooks are replaced with no-ops so callers can skip instrumentation.
type MetricHooks struct {
	OnOutcome     func(kind gateway.OutcomeKind)
	OnRateLimited func()
}

func (h *MetricHooks) fill() {
	if h.OnOutcome == nil {
		h.OnOutcome = func(gateway.OutcomeKind) {}
	}
	if h.OnRateLimited == nil {
		h.OnRateLimited = func() {}
	}
}

// DonationService coordinates the rate limiter, gateway client, donation
// store, and notification dispatch. All business rules for the donation flow
// live here; HTTP handlers and workers depend on this service, not on each
// other.
type DonationService struct {
	repo       repository.DonationRepository
	gw         PaymentGateway
	dispatcher *notifier.Dispatcher
	q          *queue.DispatchQueue
	limiter    *ratelimiter.SourceLimiter
	logger     *zap.Logger
	hooks      MetricHooks
	now        func() time.Time
}

func NewDonationService(
	repo repository.DonationRepository,
	gw PaymentGateway,
	dispatcher *notifier.Dispatcher,
	q *queue.DispatchQueue,
	limiter *ratelimiter.SourceLimiter,
	logger *zap.Logger,
	hooks MetricHooks,
) *DonationService {
	hooks.fill()
	return &DonationService{
		repo: repo, gw: gw, dispatcher: dispatcher, q: q,
		limiter: limiter, logger: logger, hooks: hooks, now: time.Now,
	}
}

// Submit validates and persists a donation, submits the payment to the
// gateway, records the classified outcome, and queues notification dispatch
// for confirmed payments. sourceID is the client network address used for
// rate limiting.
func (s *DonationService) Submit(ctx context.Context, req domain.CreateDonationRequest, sourceID string) (*domain.Donation, gateway.Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, gateway.Outcome{}, err
	}

	if allowed, _ := s.limiter.Allow(sourceID); !allowed {
		s.hooks.OnRateLimited()
		return nil, gateway.Outcome{}, domain.ErrRateLimited
	}

	now := s.now().UTC()
	d := &domain.Donation{
		ID:         uuid.New().String(),
		Reference:  domain.NewReference(now),
		DonorName:  req.DonorName,
		DonorEmail: req.DonorEmail,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     domain.StatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.CardBrand != "" {
		d.CardBrand = &req.CardBrand
	}
	if req.CardLast4 != "" {
		d.CardLast4 = &req.CardLast4
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, gateway.Outcome{}, fmt.Errorf("persist donation: %w", err)
	}

	payload, err := gateway.PaymentRequest(d.Reference, d.Amount, d.Currency, req.TransientToken)
	if err != nil {
		return nil, gateway.Outcome{}, fmt.Errorf("build payment payload: %w", err)
	}

	outcome := s.gw.SubmitPayment(ctx, payload)
	s.hooks.OnOutcome(outcome.Kind)
	s.applyOutcome(ctx, d, outcome)

	if outcome.Succeeded() {
		if err := s.q.Enqueue(queue.Job{Reference: d.Reference}); err != nil {
			s.logger.Warn("dispatch queue full, notification delayed",
				zap.String("reference", d.Reference), zap.Error(err))
		}
	}

	return d, outcome, nil
}

// applyOutcome maps the classified outcome onto the stored donation.
// The outcome save is best-effort bookkeeping: the payment already happened
// at the gateway, so a failed write is logged and the flow continues rather
// than masking the payment result.
func (s *DonationService) applyOutcome(ctx context.Context, d *domain.Donation, outcome gateway.Outcome) {
	status := domain.StatusFailed
	switch outcome.Kind {
	case gateway.OutcomeAuthorized:
		status = domain.StatusAuthorized
	case gateway.OutcomePending:
		status = domain.StatusPending
	case gateway.OutcomeDeclined:
		status = domain.StatusDeclined
	}

	var txnID *string
	if outcome.TransactionID != "" {
		id := outcome.TransactionID
		txnID = &id
	}

	raw := outcome.RawResponse
	if raw == "" {
		raw = outcome.Message
	}

	if err := s.repo.RecordOutcome(ctx, d.Reference, status, txnID, raw); err != nil {
		s.logger.Warn("failed to record gateway outcome",
			zap.String("reference", d.Reference), zap.Error(err))
	}

	d.Status = status
	d.TransactionID = txnID
	d.GatewayResponse = &raw
	if status == domain.StatusAuthorized || status == domain.StatusPending {
		at := s.now().UTC()
		d.AuthorizedAt = &at
	}
}

// VerifyCredentials runs the operator credential-test flow against the
// gateway; the two-step probe logic lives in the client.
func (s *DonationService) VerifyCredentials(ctx context.Context) gateway.Outcome {
	outcome := s.gw.VerifyCredentials(ctx)
	s.hooks.OnOutcome(outcome.Kind)
	return outcome
}

func (s *DonationService) GetByReference(ctx context.Context, reference string) (*domain.Donation, error) {
	return s.repo.GetByReference(ctx, reference)
}

// RetryNotification re-runs dispatch for one reference synchronously.
// The idempotency log makes this safe to call any number of times.
func (s *DonationService) RetryNotification(ctx context.Context, reference string) (notifier.DispatchResult, error) {
	d, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return notifier.DispatchResult{}, err
	}
	return s.dispatcher.Dispatch(ctx, d.Notification())
}
