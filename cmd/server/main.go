package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/esperanza/donation-gateway/internal/api"
	"github.com/esperanza/donation-gateway/internal/config"
	"github.com/esperanza/donation-gateway/internal/db"
	"github.com/esperanza/donation-gateway/internal/gateway"
	"github.com/esperanza/donation-gateway/internal/mailer"
	"github.com/esperanza/donation-gateway/internal/metrics"
	"github.com/esperanza/donation-gateway/internal/notifier"
	"github.com/esperanza/donation-gateway/internal/queue"
	"github.com/esperanza/donation-gateway/internal/ratelimiter"
	"github.com/esperanza/donation-gateway/internal/repository"
	"github.com/esperanza/donation-gateway/internal/service"
	"github.com/esperanza/donation-gateway/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	_ = godotenv.Load() // local development convenience; absent in production
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	q := queue.New(cfg.DispatchQueueSize)
	m := metrics.New(reg, q.Depth)

	donationRepo := repository.NewPgDonationRepository(pool)
	logRepo := repository.NewPgNotificationLogRepository(pool)
	settingsRepo := repository.NewPgSettingsRepository(pool)

	signer := gateway.NewSigner(gateway.WithKeyFormat(gateway.KeyFormat(cfg.GatewayKeyFormat)))
	gwClient, err := gateway.NewClient(cfg.GatewayBaseURL, gateway.Credentials{
		MerchantID: cfg.GatewayMerchantID,
		KeyID:      cfg.GatewayKeyID,
		SecretKey:  cfg.GatewaySecretKey,
	}, signer, cfg.GatewayTimeout)
	if err != nil {
		logger.Fatal("failed to build gateway client", zap.Error(err))
	}

	sender := mailer.Instrument(mailer.NewClient(mailer.Params{
		Host:        cfg.MailHost,
		Port:        cfg.MailPort,
		Username:    cfg.MailUsername,
		Password:    cfg.MailPassword,
		StepTimeout: cfg.MailStepTimeout,
	}), m.ObserveDialog)

	dispatcher := notifier.NewDispatcher(logRepo, settingsRepo, sender, logger)
	limiter := ratelimiter.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	pacer := ratelimiter.NewSendPacer(cfg.MailSendRate)

	svc := service.NewDonationService(donationRepo, gwClient, dispatcher, q, limiter, logger, service.MetricHooks{
		OnOutcome:     func(kind gateway.OutcomeKind) { m.PaymentsSubmitted.WithLabelValues(string(kind)).Inc() },
		OnRateLimited: m.RateLimitRejections.Inc,
	})

	// ---- dispatch workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	dispatchPool := worker.NewPool(cfg.DispatchWorkers, q, donationRepo, dispatcher, pacer, logger, worker.MetricHooks{
		OnSent: func(channel string, count int) {
			m.NotificationsSent.WithLabelValues(channel).Add(float64(count))
		},
		OnSkipped: m.NotificationsSkipped.Inc,
		OnFailed:  m.NotificationsFailed.Inc,
	})
	dispatchPool.Start(workerCtx)

	retryPoller := worker.NewRetryPoller(logRepo, q, cfg.RetryInterval, cfg.RetryMaxAttempts, logger)
	go retryPoller.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal workers to stop pulling new dispatch jobs.
	cancelWorkers()

	// 3. Wait for in-flight dispatches to finish.
	dispatchPool.Wait()

	logger.Info("server stopped cleanly")
}
