package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/core/ports"
	"github.com/kirillkom/tradeflow/internal/core/workflow"
)

// WorkflowObserver receives correlation and transition outcomes, typically for metrics.
type WorkflowObserver interface {
	ObserveCorrelation(outcome domain.CorrelationOutcome)
	ObserveTransition(from, to domain.StepID)
}

type WorkflowOptions struct {
	Events   ports.TransactionEventPublisher
	Observer WorkflowObserver
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

type WorkflowUseCase struct {
	docs       ports.DocumentRepository
	txs        ports.TransactionRepository
	correlator *Correlator
	extractor  ports.EntityExtractor
	locker     ports.UserLocker

	events   ports.TransactionEventPublisher
	observer WorkflowObserver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewWorkflowUseCase(
	docs ports.DocumentRepository,
	txs ports.TransactionRepository,
	correlator *Correlator,
	extractor ports.EntityExtractor,
	locker ports.UserLocker,
	opts WorkflowOptions,
) *WorkflowUseCase {
	uc := &WorkflowUseCase{
		docs:       docs,
		txs:        txs,
		correlator: correlator,
		extractor:  extractor,
		locker:     locker,
		events:     opts.Events,
		observer:   opts.Observer,
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	if uc.now == nil {
		uc.now = func() time.Time { return time.Now().UTC() }
	}
	if uc.newID == nil {
		uc.newID = uuid.NewString
	}
	return uc
}

// ProcessDocumentWorkflow is invoked once per processed document. It attaches the document to
// a related open transaction or starts a new one, and returns the resulting transaction.
func (uc *WorkflowUseCase) ProcessDocumentWorkflow(ctx context.Context, doc *domain.Document) (*domain.Transaction, error) {
	if err := validateWorkflowInput(doc); err != nil {
		return nil, err
	}

	if doc.TransactionID != "" {
		tx, err := uc.txs.GetByID(ctx, doc.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("load attached transaction: %w", err)
		}
		uc.observeCorrelation(domain.OutcomeAlreadyAttached)
		return tx, nil
	}

	var (
		result *domain.Transaction
		event  domain.TransactionEvent
	)
	err := uc.locker.WithUserLock(ctx, doc.UserID, func(lockCtx context.Context) error {
		recovered, err := uc.resumeAssignment(lockCtx, doc)
		if err != nil {
			return err
		}
		if recovered != nil {
			result = recovered
			return nil
		}

		if err := uc.resolveEntities(lockCtx, doc); err != nil {
			return err
		}

		related, err := uc.correlator.FindRelatedTransaction(lockCtx, doc)
		if err != nil {
			return err
		}
		if related == nil {
			result, event, err = uc.createTransaction(lockCtx, doc)
			return err
		}
		result, event, err = uc.attachDocument(lockCtx, related, doc)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, event)
	return result, nil
}

// resumeAssignment finishes a previous run that stored the transaction entry but failed to mark
// the document. It returns nil when no transaction holds the document yet.
func (uc *WorkflowUseCase) resumeAssignment(ctx context.Context, doc *domain.Document) (*domain.Transaction, error) {
	tx, err := uc.txs.FindByDocumentID(ctx, doc.ID)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by document: %w", err)
	}
	if !tx.HasDocument(doc.ID) {
		return nil, domain.WrapError(domain.ErrPersistence, "find transaction by document", fmt.Errorf("transaction %s has no entry for document %s", tx.ID, doc.ID))
	}
	if err := uc.assign(ctx, doc, tx.ID); err != nil {
		return nil, err
	}

	uc.logger.Info("document_assignment_resumed",
		"transaction_id", tx.ID,
		"document_id", doc.ID,
	)
	uc.observeCorrelation(domain.OutcomeAlreadyAttached)
	return tx, nil
}

func validateWorkflowInput(doc *domain.Document) error {
	switch {
	case doc == nil:
		return domain.WrapError(domain.ErrInvalidInput, "process document workflow", errors.New("document is required"))
	case strings.TrimSpace(doc.ID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "process document workflow", errors.New("document id is required"))
	case strings.TrimSpace(doc.UserID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "process document workflow", errors.New("user id is required"))
	case doc.Status != domain.StatusProcessed:
		return domain.WrapError(domain.ErrInvalidInput, "process document workflow", fmt.Errorf("document status is %q, want processed", doc.Status))
	}
	return nil
}

// resolveEntities makes sure doc carries an entity snapshot. Extractor failures degrade to empty entities.
func (uc *WorkflowUseCase) resolveEntities(ctx context.Context, doc *domain.Document) error {
	if doc.Entities != nil {
		return nil
	}

	entities := domain.EmptyEntities()
	if uc.extractor != nil {
		extraction, err := uc.extractor.Extract(ctx, doc.RawText)
		if err != nil {
			uc.logger.Warn("entity_extraction_degraded", "document_id", doc.ID, "error", err)
		} else {
			entities = domain.MergeEntities(domain.EmptyEntities(), extraction.Entities)
		}
	}
	doc.Entities = &entities

	if err := uc.docs.SaveEntities(ctx, doc.ID, entities); err != nil {
		return fmt.Errorf("save document entities: %w", err)
	}
	return nil
}

func (uc *WorkflowUseCase) createTransaction(ctx context.Context, doc *domain.Document) (*domain.Transaction, domain.TransactionEvent, error) {
	now := uc.now()
	docType := domain.ParseDocumentType(string(doc.DocumentType))

	tx := &domain.Transaction{
		ID:        uc.newID(),
		UserID:    doc.UserID,
		Entities:  domain.MergeEntities(domain.Entities{}, *doc.Entities),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.SetStep(domain.InitialStepFor(docType)); err != nil {
		return nil, domain.TransactionEvent{}, err
	}
	tx.AppendDocument(uc.entryFor(doc, docType, domain.RoleSource))
	tx.ApplyDetails(doc)
	tx.NextSuggestedActions = workflow.Suggest(tx.CurrentStep.StepID, tx.DocumentTypes())

	if err := uc.txs.Create(ctx, tx); err != nil {
		return nil, domain.TransactionEvent{}, fmt.Errorf("create transaction: %w", err)
	}
	if err := uc.assign(ctx, doc, tx.ID); err != nil {
		return nil, domain.TransactionEvent{}, err
	}

	uc.logger.Info("transaction_created",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"document_id", doc.ID,
		"document_type", docType,
		"step", tx.CurrentStep.StepID,
	)
	uc.observeCorrelation(domain.OutcomeCreated)

	return tx, uc.eventFor(tx, doc, domain.OutcomeCreated, ""), nil
}

func (uc *WorkflowUseCase) attachDocument(ctx context.Context, tx *domain.Transaction, doc *domain.Document) (*domain.Transaction, domain.TransactionEvent, error) {
	docType := domain.ParseDocumentType(string(doc.DocumentType))
	from := tx.CurrentStep.StepID

	entry := uc.entryFor(doc, docType, domain.RoleReceived)
	tx.AppendDocument(entry)
	tx.Entities = domain.MergeEntities(tx.Entities, *doc.Entities)
	tx.ApplyDetails(doc)

	accumulated := tx.DocumentTypes()
	if next := workflow.Next(from, accumulated, docType); next != workflow.NoTransition {
		if err := tx.SetStep(next); err != nil {
			return nil, domain.TransactionEvent{}, err
		}
	}
	tx.NextSuggestedActions = workflow.Suggest(tx.CurrentStep.StepID, accumulated)
	tx.UpdatedAt = uc.now()

	if err := uc.txs.AttachDocument(ctx, tx, entry); err != nil {
		return nil, domain.TransactionEvent{}, fmt.Errorf("attach document: %w", err)
	}
	if err := uc.assign(ctx, doc, tx.ID); err != nil {
		return nil, domain.TransactionEvent{}, err
	}

	uc.logger.Info("document_attached",
		"transaction_id", tx.ID,
		"document_id", doc.ID,
		"document_type", docType,
		"documents", len(tx.Documents),
	)
	uc.observeCorrelation(domain.OutcomeAttached)
	if tx.CurrentStep.StepID != from {
		uc.logger.Info("transaction_transitioned",
			"transaction_id", tx.ID,
			"from", from,
			"to", tx.CurrentStep.StepID,
			"status", tx.Status,
		)
		uc.observeTransition(from, tx.CurrentStep.StepID)
	}

	return tx, uc.eventFor(tx, doc, domain.OutcomeAttached, from), nil
}

func (uc *WorkflowUseCase) assign(ctx context.Context, doc *domain.Document, transactionID string) error {
	if err := uc.docs.AssignTransaction(ctx, doc.ID, transactionID); err != nil {
		return fmt.Errorf("assign document to transaction: %w", err)
	}
	doc.TransactionID = transactionID
	return nil
}

func (uc *WorkflowUseCase) entryFor(doc *domain.Document, docType domain.DocumentType, role domain.DocumentRole) domain.TransactionDocument {
	processed := uc.now()
	if doc.ProcessedAt != nil {
		processed = *doc.ProcessedAt
	}
	return domain.TransactionDocument{
		DocumentID:    doc.ID,
		DocumentType:  docType,
		UploadDate:    doc.CreatedAt,
		ProcessedDate: &processed,
		Status:        doc.Status,
		Role:          role,
	}
}

// GetTransaction returns the user's transaction or a not-found error.
func (uc *WorkflowUseCase) GetTransaction(ctx context.Context, transactionID, userID string) (*domain.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" || strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get transaction", errors.New("transaction id and user id are required"))
	}
	return uc.txs.GetForUser(ctx, transactionID, userID)
}

func (uc *WorkflowUseCase) GetTransactionDocuments(ctx context.Context, transactionID string) ([]domain.Document, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get transaction documents", errors.New("transaction id is required"))
	}
	if _, err := uc.txs.GetByID(ctx, transactionID); err != nil {
		return nil, err
	}
	docs, err := uc.docs.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transaction documents: %w", err)
	}
	return docs, nil
}

// UpdateTransactionStatus is a manual override. Statuses without a registered step are rejected
// with domain.ErrTransitionRejected and leave the transaction untouched.
func (uc *WorkflowUseCase) UpdateTransactionStatus(ctx context.Context, transactionID, userID, status string) (*domain.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" || strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update transaction status", errors.New("transaction id and user id are required"))
	}
	step, ok := domain.StepForStatus(strings.TrimSpace(status))
	if !ok {
		return nil, domain.WrapError(domain.ErrTransitionRejected, "update transaction status", fmt.Errorf("unmapped status %q", status))
	}

	var result *domain.Transaction
	err := uc.locker.WithUserLock(ctx, userID, func(lockCtx context.Context) error {
		tx, err := uc.txs.GetForUser(lockCtx, transactionID, userID)
		if err != nil {
			return err
		}
		from := tx.CurrentStep.StepID
		if err := tx.SetStep(step.StepID); err != nil {
			return err
		}
		tx.NextSuggestedActions = workflow.Suggest(tx.CurrentStep.StepID, tx.DocumentTypes())
		tx.UpdatedAt = uc.now()

		if err := uc.txs.UpdateWorkflow(lockCtx, tx); err != nil {
			return fmt.Errorf("update transaction workflow: %w", err)
		}
		uc.logger.Info("transaction_status_override",
			"transaction_id", tx.ID,
			"user_id", userID,
			"from", from,
			"to", tx.CurrentStep.StepID,
		)
		if from != tx.CurrentStep.StepID {
			uc.observeTransition(from, tx.CurrentStep.StepID)
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *WorkflowUseCase) eventFor(tx *domain.Transaction, doc *domain.Document, outcome domain.CorrelationOutcome, from domain.StepID) domain.TransactionEvent {
	return domain.TransactionEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		DocumentID:    doc.ID,
		Outcome:       outcome,
		FromStep:      from,
		ToStep:        tx.CurrentStep.StepID,
		Status:        tx.Status,
		OccurredAt:    uc.now(),
	}
}

func (uc *WorkflowUseCase) publish(ctx context.Context, event domain.TransactionEvent) {
	if uc.events == nil || event.TransactionID == "" {
		return
	}
	if err := uc.events.PublishTransactionUpdated(ctx, event); err != nil {
		uc.logger.Warn("transaction_event_publish_failed", "transaction_id", event.TransactionID, "error", err)
	}
}

func (uc *WorkflowUseCase) observeCorrelation(outcome domain.CorrelationOutcome) {
	if uc.observer != nil {
		uc.observer.ObserveCorrelation(outcome)
	}
}

func (uc *WorkflowUseCase) observeTransition(from, to domain.StepID) {
	if uc.observer != nil {
		uc.observer.ObserveTransition(from, to)
	}
}
