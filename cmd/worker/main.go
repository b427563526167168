package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/bootstrap"
	"github.com/kirillkom/club-events-assistant/internal/config"
	"github.com/kirillkom/club-events-assistant/internal/observability/logging"
	"github.com/kirillkom/club-events-assistant/internal/observability/metrics"
)

const indexTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("worker", "info").Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		slog.Error("worker_requires_queue", "hint", "set NATS_URL")
		os.Exit(1)
	}
	if app.Indexer == nil {
		slog.Error("worker_requires_secondary_index", "retrieval_backend", cfg.RetrievalBackend, "hint", "set RETRIEVAL_BACKEND=qdrant")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeEventIngested(ctx, func(handlerCtx context.Context, eventID string) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, indexTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartEvent()
		err := app.Indexer.IndexByID(indexCtx, eventID)
		workerMetrics.FinishEvent("worker", time.Since(start), err)
		if err == nil {
			slog.Info("event_indexed", "event_id", eventID, "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err.Error())
		os.Exit(1)
	}
}
