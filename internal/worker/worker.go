package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
)

// MetricHooks carries the metric callbacks injected by main so the worker
// stays metrics-agnostic. Nil hooks become no-ops.
type MetricHooks struct {
	OnSent    func(channel string, count int)
	OnSkipped func()
	OnFailed  func()
}

func (h *MetricHooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(string, int) {}
	}
	if h.OnSkipped == nil {
		h.OnSkipped = func() {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func() {}
	}
}

// Worker is a single goroutine that pulls dispatch jobs from the queue,
// paces outbound mail, and runs the notification dispatcher for each
// confirmed donation.
type Worker struct {
	id         int
	q          *queue.DispatchQueue
	repo       repository.DonationRepository
	dispatcher *notifier.Dispatcher
	pacer      *ratelimiter.SendPacer
	logger     *zap.Logger
	hooks      MetricHooks
}

func NewWorker(
	id int,
	q *queue.DispatchQueue,
	repo repository.DonationRepository,
	dispatcher *notifier.Dispatcher,
	pacer *ratelimiter.SendPacer,
	logger *zap.Logger,
	hooks MetricHooks,
) *Worker {
	hooks.fill()
	return &Worker{
		id: id, q: q, repo: repo, dispatcher: dispatcher,
		pacer: pacer, logger: logger, hooks: hooks,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("dispatch worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("dispatch worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	log := w.logger.With(zap.String("reference", job.Reference))

	d, err := w.repo.GetByReference(ctx, job.Reference)
	if err != nil {
		log.Error("failed to fetch donation for dispatch", zap.Error(err))
		return
	}

	// Block here until the send pacer grants a token.
	if err := w.pacer.Wait(ctx); err != nil {
		// ctx cancelled while waiting — worker is shutting down.
		return
	}

	res, err := w.dispatcher.Dispatch(ctx, d.Notification())
	if err != nil {
		log.Error("dispatch aborted", zap.Error(err))
		w.hooks.OnFailed()
		return
	}

	switch {
	case res.Skipped:
		log.Debug("notification already sent, skipping")
		w.hooks.OnSkipped()
	case res.Status == domain.NotificationSent:
		w.hooks.OnSent("accounting", res.AccountingSent)
		if res.DonorSent {
			w.hooks.OnSent("donor", 1)
		}
		log.Info("notification dispatched",
			zap.Int("accounting_sent", res.AccountingSent),
			zap.Bool("donor_sent", res.DonorSent))
	default:
		w.hooks.OnFailed()
		log.Warn("notification dispatch recorded as failed")
	}
}
