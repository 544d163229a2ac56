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

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/tradeflow/internal/bootstrap"
	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/infrastructure/resilience"
	"github.com/kirillkom/tradeflow/internal/observability/logging"
	"github.com/kirillkom/tradeflow/internal/observability/metrics"
)

const serviceName = "tradeflow-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	resilienceMetrics := metrics.NewResilienceMetrics(workerMetrics.Registerer(), serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Observer: workerMetrics,
		ResilienceHooks: resilience.Hooks{
			OnRetry:       resilienceMetrics.ObserveRetry,
			OnStateChange: resilienceMetrics.ObserveStateChange,
		},
		OnDelivery: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeDocumentIngested(groupCtx, func(handlerCtx context.Context, documentID string) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerProcessTimeout)
			defer cancel()

			workerMetrics.StartDocument()
			start := time.Now()
			err := app.ProcessUC.ProcessByID(processCtx, documentID)
			workerMetrics.FinishDocument(time.Since(start), err)
			return err
		})
	})

	if err := group.Wait(); err != nil {
		logger.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}
