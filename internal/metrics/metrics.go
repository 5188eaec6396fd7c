package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	PaymentsSubmitted    *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsSkipped prometheus.Counter
	NotificationsFailed  prometheus.Counter
	RateLimitRejections  prometheus.Counter
	MailDialogSeconds    prometheus.Histogram
	DispatchQueueDepth   prometheus.GaugeFunc
}

// New registers all instruments with the given Prometheus registerer.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state. queueDepth feeds the gauge on
// every scrape.
func New(reg prometheus.Registerer, queueDepth func() int) *Metrics {
	m := &Metrics{
		PaymentsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_submitted_total",
			Help: "Total gateway payment submissions by classified outcome.",
		}, []string{"outcome"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donation_notifications_sent_total",
			Help: "Total notification emails delivered, by channel.",
		}, []string{"channel"}),

		NotificationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donation_notifications_skipped_total",
			Help: "Dispatches skipped because the reference was already notified.",
		}),

		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donation_notifications_failed_total",
			Help: "Dispatches whose log entry was recorded as failed.",
		}),

		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Donation submissions denied by the per-source rate limiter.",
		}),

		MailDialogSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_dialog_seconds",
			Help:    "Wall time of one complete mail-submission dialog.",
			Buckets: prometheus.DefBuckets,
		}),

		DispatchQueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Notification dispatch jobs currently waiting in the queue.",
		}, func() float64 { return float64(queueDepth()) }),
	}

	reg.MustRegister(
		m.PaymentsSubmitted,
		m.NotificationsSent,
		m.NotificationsSkipped,
		m.NotificationsFailed,
		m.RateLimitRejections,
		m.MailDialogSeconds,
		m.DispatchQueueDepth,
	)

	return m
}

// ObserveDialog records the duration of one mail dialog.
func (m *Metrics) ObserveDialog(d time.Duration) {
	m.MailDialogSeconds.Observe(d.Seconds())
}
