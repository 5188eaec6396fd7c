package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
)

// Pool manages the lifecycle of all dispatch workers.
// All workers share the same queue and the same send pacer.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	size int,
	q *queue.DispatchQueue,
	repo repository.DonationRepository,
	dispatcher *notifier.Dispatcher,
	pacer *ratelimiter.SendPacer,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, dispatcher, pacer,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines. Cancelling the provided ctx
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context so in-flight dispatches finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
