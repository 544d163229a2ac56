package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	*docStoreFake
	saveErr     error
	statusCalls []statusCall
}

func newProcessRepoFake(doc *domain.Document) *processRepoFake {
	return &processRepoFake{docStoreFake: newDocStoreFake(doc)}
}

func (f *processRepoFake) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return f.docStoreFake.UpdateStatus(ctx, id, status, errMessage)
}

func (f *processRepoFake) SaveExtraction(ctx context.Context, id string, rawText string, extraction domain.Extraction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.docStoreFake.SaveExtraction(ctx, id, rawText, extraction)
}

type textExtractorFake struct {
	text string
	err  error
}

func (f *textExtractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type orchestratorFake struct {
	docs []*domain.Document
	err  error
}

func (f *orchestratorFake) ProcessDocumentWorkflow(_ context.Context, doc *domain.Document) (*domain.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *doc
	f.docs = append(f.docs, &cp)
	return &domain.Transaction{ID: "tx-1"}, nil
}

func uploadedDoc() *domain.Document {
	return &domain.Document{ID: "doc-1", UserID: "user-1", Status: domain.StatusUploaded, DocumentType: domain.DocUnknown}
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	orchestrator := &orchestratorFake{}
	entities := &entityExtractorFake{extraction: domain.Extraction{
		DocumentType:    "Quotation",
		ExtractedFields: []domain.ExtractedField{{Key: "supplier_name", Value: "Acme Ltd", Confidence: 0.9, Type: "string"}},
		Entities:        domain.Entities{Supplier: &domain.Entity{Name: "Acme Ltd"}},
	}}
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{text: "QUOTATION from Acme Ltd"}, entities, orchestrator, nil)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusProcessed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}

	if len(orchestrator.docs) != 1 {
		t.Fatalf("expected one orchestrator call, got %d", len(orchestrator.docs))
	}
	submitted := orchestrator.docs[0]
	if submitted.Status != domain.StatusProcessed || submitted.DocumentType != domain.DocQuotation {
		t.Fatalf("unexpected submitted document: status=%s type=%s", submitted.Status, submitted.DocumentType)
	}
	if submitted.ProcessedAt == nil || submitted.RawText == "" {
		t.Fatalf("expected processed_at and raw text on submitted document")
	}
	if submitted.Entities == nil || submitted.Entities.Supplier.Name != "Acme Ltd" || submitted.Entities.Customer == nil {
		t.Fatalf("expected full entity snapshot, got %+v", submitted.Entities)
	}

	stored, _ := repo.GetByID(context.Background(), "doc-1")
	if stored.DocumentType != domain.DocQuotation || len(stored.ExtractedFields) != 1 {
		t.Fatalf("expected extraction persisted, got %+v", stored)
	}
}

func TestProcessByIDDegradesOnEntityExtractorError(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	orchestrator := &orchestratorFake{}
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{text: "text"}, &entityExtractorFake{err: errors.New("llm down")}, orchestrator, nil)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(orchestrator.docs) != 1 {
		t.Fatalf("expected orchestrator call, got %d", len(orchestrator.docs))
	}
	submitted := orchestrator.docs[0]
	if submitted.DocumentType != domain.DocUnknown {
		t.Fatalf("expected unknown type, got %s", submitted.DocumentType)
	}
	if submitted.Entities == nil || submitted.Entities.Supplier == nil || submitted.Entities.Supplier.Name != "" {
		t.Fatalf("expected known-empty entities, got %+v", submitted.Entities)
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	orchestrator := &orchestratorFake{}
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{err: errors.New("extract fail")}, &entityExtractorFake{}, orchestrator, nil)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected processing + failed status updates, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", repo.statusCalls[1])
	}
	if len(orchestrator.docs) != 0 {
		t.Fatalf("expected no orchestrator call for failed document")
	}
}

func TestProcessByIDMarksFailedOnEmptyText(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{text: ""}, &entityExtractorFake{}, &orchestratorFake{}, nil)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnSaveError(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	repo.saveErr = domain.WrapError(domain.ErrPersistence, "save extraction", errors.New("db down"))
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{text: "text"}, &entityExtractorFake{}, &orchestratorFake{}, nil)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDKeepsProcessedWhenWorkflowFails(t *testing.T) {
	repo := newProcessRepoFake(uploadedDoc())
	uc := NewProcessDocumentUseCase(repo, &textExtractorFake{text: "text"}, &entityExtractorFake{}, &orchestratorFake{err: errors.New("lock timeout")}, nil)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected workflow error")
	}
	stored, _ := repo.GetByID(context.Background(), "doc-1")
	if stored.Status != domain.StatusProcessed {
		t.Fatalf("expected document to stay processed, got %s", stored.Status)
	}
}
