package queue

import (
	"context"

	"github.com/esperanza/donation-gateway/internal/domain"
)

// Job is the minimal data placed on the dispatch queue. Workers rebuild the
// full notification from the donation record using the reference, keeping
// the queue lightweight and the database authoritative.
type Job struct {
	Reference string
}

// DispatchQueue is a bounded in-process queue of pending notification
// dispatches. Confirmed donations are enqueued by the HTTP flow and drained
// by the worker pool.
type DispatchQueue struct {
	jobs chan Job
}

func New(capacity int) *DispatchQueue {
	return &DispatchQueue{jobs: make(chan Job, capacity)}
}

// Enqueue places a job on the queue without blocking: if the queue is full,
// ErrQueueFull is returned immediately rather than stalling the HTTP handler.
// The retry poller will pick the reference up later from the log.
func (q *DispatchQueue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
// Returns (Job{}, false) on cancellation, the graceful shutdown signal.
func (q *DispatchQueue) Dequeue(ctx context.Context) (Job, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

// Depth returns the number of jobs currently waiting.
// Used by the metrics gauge.
func (q *DispatchQueue) Depth() int {
	return len(q.jobs)
}
