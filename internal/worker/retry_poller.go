package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/repository"
)

// RetryPoller periodically re-enqueues references whose notification log
// entry is failed, so transient mail faults heal without operator action.
//
// This DB-backed approach means retries survive server restarts: the failed
// state is persisted in the log, not held in memory. The attempts column
// bounds how often one reference is retried.
type RetryPoller struct {
	log         repository.NotificationLogRepository
	q           *queue.DispatchQueue
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

func NewRetryPoller(
	log repository.NotificationLogRepository,
	q *queue.DispatchQueue,
	interval time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) *RetryPoller {
	return &RetryPoller{log: log, q: q, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Run ticks every interval and re-enqueues failed notifications.
// Stops cleanly when ctx is cancelled.
func (rp *RetryPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	rp.logger.Info("notification retry poller started", zap.Duration("interval", rp.interval))

	for {
		select {
		case <-ctx.Done():
			rp.logger.Info("notification retry poller stopping")
			return
		case <-ticker.C:
			rp.poll(ctx)
		}
	}
}

func (rp *RetryPoller) poll(ctx context.Context) {
	entries, err := rp.log.FindFailed(ctx, rp.maxAttempts)
	if err != nil {
		rp.logger.Error("retry poll error", zap.Error(err))
		return
	}

	requeued := 0
	for _, e := range entries {
		if err := rp.q.Enqueue(queue.Job{Reference: e.Reference}); err != nil {
			rp.logger.Warn("could not re-enqueue failed notification",
				zap.String("reference", e.Reference), zap.Error(err))
			continue
		}
		requeued++
	}

	if requeued > 0 {
		rp.logger.Info("re-enqueued failed notifications", zap.Int("count", requeued))
	}
}
