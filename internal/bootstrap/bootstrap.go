package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/core/ports"
	"github.com/kirillkom/tradeflow/internal/core/usecase"
	"github.com/kirillkom/tradeflow/internal/infrastructure/extractor/textextract"
	"github.com/kirillkom/tradeflow/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/tradeflow/internal/infrastructure/lock/memory"
	"github.com/kirillkom/tradeflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tradeflow/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tradeflow/internal/infrastructure/resilience"
	"github.com/kirillkom/tradeflow/internal/infrastructure/storage/localfs"
)

const advisoryLockNamespace = "tradeflow.correlate"

// Options carries process-specific observers into the shared wiring.
type Options struct {
	Logger          *slog.Logger
	Observer        usecase.WorkflowObserver
	ResilienceHooks resilience.Hooks
	OnDelivery      func(lag time.Duration)
}

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Docs       ports.DocumentReader
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	WorkflowUC ports.TransactionService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := postgres.MigrateUp(cfg.PostgresDSN); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docRepo := postgres.NewDocumentRepository(db)
	txRepo := postgres.NewTransactionRepository(db)

	var locker ports.UserLocker
	switch cfg.LockBackend {
	case config.LockBackendMemory:
		locker = memory.NewKeyedLocker()
	default:
		locker = postgres.NewAdvisoryLocker(db, advisoryLockNamespace, postgres.DefaultLockHolders)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		BreakerEnabled:      cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:  uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio: cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:  cfg.ResilienceBreakerOpenTimeout,
	}, resilience.WithLogger(logger), resilience.WithHooks(opts.ResilienceHooks))

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		EventsSubject:      cfg.NATSTransactionSubject,
		ResilienceExecutor: executor,
		OnDelivery:         opts.OnDelivery,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.WithResilience(executor))
	entityExtractor := ollama.NewEntityExtractor(ollamaClient)
	textExtractor := textextract.NewExtractor(storage)

	correlator := usecase.NewCorrelator(txRepo, cfg.CorrelationWindow, logger)
	workflowUC := usecase.NewWorkflowUseCase(docRepo, txRepo, correlator, entityExtractor, locker, usecase.WorkflowOptions{
		Events:   queue,
		Observer: opts.Observer,
		Logger:   logger,
	})
	ingestUC := usecase.NewIngestDocumentUseCase(docRepo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(docRepo, textExtractor, entityExtractor, workflowUC, logger)

	return &App{
		Config: cfg,
		Queue:  queue,
		Docs:   docRepo,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		WorkflowUC: workflowUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
