package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/api"
	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/config"
	"github.com/devarispbrown/gtsd-sub009/internal/db"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/metrics"
	"github.com/devarispbrown/gtsd-sub009/internal/queue"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/scanner"
	"github.com/devarispbrown/gtsd-sub009/internal/trigger"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
	"github.com/devarispbrown/gtsd-sub009/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
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

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clk := clock.System()

	users := userstore.NewPgUserStore(pool)
	ldg := ledger.NewPgLedger(pool, clk)
	q := queue.New(queue.NewPgStore(pool), clk, logger, queue.Options{
		PollInterval:  cfg.PollInterval,
		SweepInterval: cfg.SweepInterval,
		LeaseTTL:      cfg.LeaseTTL,
		MaxAttempts:   cfg.MaxAttempts,
		Backoff:       cfg.RetryBackoff,
		DoneRetention: cfg.DoneRetention,
		DeadRetention: cfg.DeadRetention,
	})

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayWebhookSecret, cfg.GatewayTimeout)
	sendLimiter := ratelimit.NewSendLimiter(cfg.SendRatePerSec)
	webhookLimiter := ratelimit.NewSourceLimiter(cfg.WebhookRatePerMin)
	triggers := trigger.New(users, ldg, q, clk, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go q.RunPoller(workerCtx)
	go q.RunSweeper(workerCtx)

	sc := scanner.New(users, ldg, q, clk, cfg.ScanInterval, logger)
	go sc.Run(workerCtx)

	onSent, onFailed, onNoop := m.WorkerHooks()
	deliveryPool := worker.NewPool(
		cfg.Workers, q, users, ldg, gw, sendLimiter, clk, cfg.DeepLinkBaseURL, logger,
		worker.MetricHooks{OnSent: onSent, OnFailed: onFailed, OnNoop: onNoop},
	)
	deliveryPool.Start(workerCtx)

	// Queue depth gauge sampler. Best effort; a failed read keeps the
	// previous value.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if active, _, err := q.Depths(workerCtx); err == nil {
					m.QueueDepth.Set(float64(active))
				}
			}
		}
	}()

	// ---- HTTP server ----
	onWebhookOutcome := func(outcome string) {
		m.WebhookRequests.WithLabelValues(outcome).Inc()
	}
	router := api.NewRouter(triggers, users, ldg, gw, q, webhookLimiter, reg, logger, onWebhookOutcome)
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

	// 2. Signal the scanner, poller, sweeper, and workers to stop.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current job. Leased
	// rows from a hard kill are reclaimed after the lease lapses.
	deliveryPool.Wait()

	logger.Info("server stopped cleanly")
}
