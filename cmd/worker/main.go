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

	"github.com/kirillkom/urbanism-zoning/internal/bootstrap"
	"github.com/kirillkom/urbanism-zoning/internal/config"
	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/observability/logging"
	"github.com/kirillkom/urbanism-zoning/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 5 * time.Minute
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("dotenv_load_failed", "error", err)
	}
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, WorkerMetrics: workerMetrics})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Indexer == nil || app.Queue == nil {
		slog.Error("worker_unavailable", "error", bootstrap.ErrRAGDisabled)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIndexJobs(ctx, func(handlerCtx context.Context, job domain.IndexJob) error {
		if !job.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.EnqueuedAt))
		}
		jobCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartJob()
		err := app.Indexer.IndexRegulation(jobCtx, job)
		workerMetrics.FinishJob(serviceName, time.Since(start), err)
		if err == nil {
			slog.Info("regulation_indexed", "zone_code", job.ZoneCode, "source_url", job.SourceURL, "duration_ms", time.Since(start).Milliseconds())
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
