package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo         ports.DocumentRepository
	extractor    ports.TextExtractor
	entities     ports.EntityExtractor
	orchestrator ports.WorkflowOrchestrator
	logger       *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	entities ports.EntityExtractor,
	orchestrator ports.WorkflowOrchestrator,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:         repo,
		extractor:    extractor,
		entities:     entities,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// ProcessByID runs text and entity extraction for an uploaded document, marks it processed,
// then submits it to the workflow orchestrator exactly once.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusProcessed, ""); err != nil {
		return fmt.Errorf("set status=processed: %w", err)
	}
	doc.Status = domain.StatusProcessed

	if _, err := uc.orchestrator.ProcessDocumentWorkflow(ctx, doc); err != nil {
		return fmt.Errorf("process document workflow: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	extraction := uc.extractEntities(ctx, doc.ID, text)
	uc.applyExtraction(doc, text, extraction)

	if err := uc.persistExtraction(ctx, doc.ID, text, extraction); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// extractEntities never fails: an extractor error degrades to an unknown document with empty entities.
func (uc *ProcessDocumentUseCase) extractEntities(ctx context.Context, documentID, text string) domain.Extraction {
	extraction, err := uc.entities.Extract(ctx, text)
	if err != nil {
		uc.logger.Warn("entity_extraction_degraded", "document_id", documentID, "error", err)
		return domain.Extraction{
			DocumentType:    domain.DocUnknown,
			ExtractedFields: []domain.ExtractedField{},
			Entities:        domain.EmptyEntities(),
		}
	}
	extraction.DocumentType = domain.ParseDocumentType(string(extraction.DocumentType))
	extraction.Entities = domain.MergeEntities(domain.EmptyEntities(), extraction.Entities)
	if extraction.ExtractedFields == nil {
		extraction.ExtractedFields = []domain.ExtractedField{}
	}
	return extraction
}

func (uc *ProcessDocumentUseCase) persistExtraction(ctx context.Context, documentID, text string, extraction domain.Extraction) error {
	if err := uc.repo.SaveExtraction(ctx, documentID, text, extraction); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

func (uc *ProcessDocumentUseCase) applyExtraction(doc *domain.Document, text string, extraction domain.Extraction) {
	now := time.Now().UTC()
	entities := extraction.Entities
	doc.RawText = text
	doc.DocumentType = extraction.DocumentType
	doc.ExtractedFields = extraction.ExtractedFields
	doc.Entities = &entities
	doc.ProcessedAt = &now
}
