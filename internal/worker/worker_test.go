package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/domain"
	"github.com/esperanza/donation-gateway/internal/mailer"
	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
	"github.com/esperanza/donation-gateway/internal/worker"
)

type recordingSender struct {
	mu sync.Mutex
	to []string
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, msg.To)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.to)
}

func seedDonation(t *testing.T, repo *repository.MockDonationRepository, reference string) {
	t.Helper()
	txn := "txn-1"
	now := time.Now().UTC()
	err := repo.Create(context.Background(), &domain.Donation{
		ID:            "11111111-1111-1111-1111-111111111111",
		Reference:     reference,
		DonorName:     "Ana López",
		DonorEmail:    "ana@example.com",
		Amount:        "100.00",
		Currency:      "GTQ",
		Status:        domain.StatusAuthorized,
		TransactionID: &txn,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("seed donation: %v", err)
	}
}

func TestWorker_ProcessesQueuedJob(t *testing.T) {
	const reference = "DON-1700000000-ab12cd"

	repo := repository.NewMockDonationRepository()
	seedDonation(t, repo, reference)

	logRepo := repository.NewMockNotificationLogRepository()
	sender := &recordingSender{}
	settings := &repository.MockSettingsRepository{
		Settings: &domain.NotificationSettings{
			SenderName:           "Esperanza",
			SenderEmail:          "donaciones@esperanza.org",
			AccountingEnabled:    true,
			DonorEnabled:         true,
			AccountingRecipients: []string{"conta@esperanza.org"},
		},
	}
	dispatcher := notifier.NewDispatcher(logRepo, settings, sender, zap.NewNop())

	q := queue.New(4)
	if err := q.Enqueue(queue.Job{Reference: reference}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var mu sync.Mutex
	sent := map[string]int{}
	hooks := worker.MetricHooks{
		OnSent: func(channel string, count int) {
			mu.Lock()
			defer mu.Unlock()
			sent[channel] += count
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewWorker(1, q, repo, dispatcher, ratelimiter.NewSendPacer(100), zap.NewNop(), hooks)
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for sender.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("worker delivered %d messages, want 2", sender.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	entry, err := logRepo.Find(context.Background(), reference, domain.KindPayment)
	if err != nil {
		t.Fatalf("log entry missing: %v", err)
	}
	if entry.Status != domain.NotificationSent {
		t.Fatalf("log status = %s, want sent", entry.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if sent["accounting"] != 1 || sent["donor"] != 1 {
		t.Fatalf("sent hooks = %v, want one accounting and one donor", sent)
	}
}

func TestWorker_SkipsAlreadySent(t *testing.T) {
	const reference = "DON-1700000000-ab12cd"

	repo := repository.NewMockDonationRepository()
	seedDonation(t, repo, reference)

	logRepo := repository.NewMockNotificationLogRepository()
	if err := logRepo.Upsert(context.Background(), &domain.NotificationLogEntry{
		Reference:  reference,
		Kind:       domain.KindPayment,
		Status:     domain.NotificationSent,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	sender := &recordingSender{}
	dispatcher := notifier.NewDispatcher(logRepo, &repository.MockSettingsRepository{}, sender, zap.NewNop())

	q := queue.New(4)
	if err := q.Enqueue(queue.Job{Reference: reference}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	skipped := make(chan struct{}, 1)
	hooks := worker.MetricHooks{OnSkipped: func() { skipped <- struct{}{} }}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewWorker(1, q, repo, dispatcher, ratelimiter.NewSendPacer(100), zap.NewNop(), hooks)
	go w.Run(ctx)

	select {
	case <-skipped:
	case <-time.After(3 * time.Second):
		t.Fatal("skip hook never fired")
	}
	if sender.count() != 0 {
		t.Fatalf("sends = %d, want none for an already-notified reference", sender.count())
	}
}

func TestRetryPoller_ReenqueuesFailed(t *testing.T) {
	logRepo := repository.NewMockNotificationLogRepository()
	msg := "dial tcp: connection refused"
	if err := logRepo.Upsert(context.Background(), &domain.NotificationLogEntry{
		Reference:    "DON-1700000000-ab12cd",
		Kind:         domain.KindPayment,
		Status:       domain.NotificationFailed,
		ErrorMessage: &msg,
		RecordedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	q := queue.New(4)
	poller := worker.NewRetryPoller(logRepo, q, 20*time.Millisecond, 5, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	deadline := time.After(3 * time.Second)
	for q.Depth() == 0 {
		select {
		case <-deadline:
			t.Fatal("failed entry was never re-enqueued")
		case <-time.After(10 * time.Millisecond):
		}
	}

	job, ok := q.Dequeue(context.Background())
	if !ok || job.Reference != "DON-1700000000-ab12cd" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestRetryPoller_RespectsMaxAttempts(t *testing.T) {
	logRepo := logRepoWithAttempts(t, "DON-1700000000-ab12cd", 5)

	q := queue.New(4)
	poller := worker.NewRetryPoller(logRepo, q, 20*time.Millisecond, 5, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	time.Sleep(150 * time.Millisecond)
	if q.Depth() != 0 {
		t.Fatalf("exhausted entry was re-enqueued %d times", q.Depth())
	}
}

// logRepoWithAttempts seeds one failed entry and drives its attempt count up
// through the same upsert path production code uses.
func logRepoWithAttempts(t *testing.T, reference string, attempts int) *repository.MockNotificationLogRepository {
	t.Helper()
	logRepo := repository.NewMockNotificationLogRepository()
	for i := 0; i < attempts; i++ {
		err := logRepo.Upsert(context.Background(), &domain.NotificationLogEntry{
			Reference:  reference,
			Kind:       domain.KindPayment,
			Status:     domain.NotificationFailed,
			RecordedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
	return logRepo
}
