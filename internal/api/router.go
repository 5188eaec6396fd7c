package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/api/handler"
	apimw "github.com/esperanza/donation-gateway/internal/api/middleware"
	"github.com/esperanza/donation-gateway/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.DonationService,
	pool handler.Pinger,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	dh := handler.NewDonationHandler(svc, logger)
	gh := handler.NewGatewayHandler(svc, logger)
	hh := handler.NewHealthHandler(pool)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/health/ready", hh.Ready)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/donations", dh.Create)
		r.Get("/donations/{reference}", dh.GetByReference)

		r.Post("/gateway/verify", gh.Verify)

		r.Post("/notifications/{reference}/retry", dh.RetryNotification)
	})

	return r
}
