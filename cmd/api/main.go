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

	httpadapter "github.com/kirillkom/tradeflow/internal/adapters/http"
	"github.com/kirillkom/tradeflow/internal/bootstrap"
	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/infrastructure/resilience"
	"github.com/kirillkom/tradeflow/internal/observability/logging"
	"github.com/kirillkom/tradeflow/internal/observability/metrics"
)

const serviceName = "tradeflow-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	resilienceMetrics := metrics.NewResilienceMetrics(httpMetrics.Registerer(), serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger: logger,
		ResilienceHooks: resilience.Hooks{
			OnRetry:       resilienceMetrics.ObserveRetry,
			OnStateChange: resilienceMetrics.ObserveStateChange,
		},
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.IngestUC, app.Docs, app.WorkflowUC, httpMetrics, logging.Component(logger, "http")).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
