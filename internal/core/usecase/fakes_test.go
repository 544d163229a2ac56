package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

type docStoreFake struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	assignErr error
}

func newDocStoreFake(docs ...*domain.Document) *docStoreFake {
	f := &docStoreFake{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		cp := *d
		f.docs[d.ID] = &cp
	}
	return f
}

func (f *docStoreFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *docStoreFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	cp := *d
	return &cp, nil
}

func (f *docStoreFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id=%s", id))
	}
	d.Status = status
	d.Error = errMessage
	return nil
}

func (f *docStoreFake) SaveExtraction(_ context.Context, id string, rawText string, extraction domain.Extraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save extraction", fmt.Errorf("id=%s", id))
	}
	entities := extraction.Entities
	d.RawText = rawText
	d.DocumentType = extraction.DocumentType
	d.ExtractedFields = extraction.ExtractedFields
	d.Entities = &entities
	return nil
}

func (f *docStoreFake) SaveEntities(_ context.Context, id string, entities domain.Entities) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save entities", fmt.Errorf("id=%s", id))
	}
	d.Entities = &entities
	return nil
}

func (f *docStoreFake) AssignTransaction(_ context.Context, id, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "assign transaction", fmt.Errorf("id=%s", id))
	}
	if d.TransactionID != "" {
		return domain.WrapError(domain.ErrConflict, "assign transaction", errors.New("already assigned"))
	}
	d.TransactionID = transactionID
	return nil
}

func (f *docStoreFake) ListByTransaction(_ context.Context, transactionID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0)
	for _, d := range f.docs {
		if d.TransactionID == transactionID {
			out = append(out, *d)
		}
	}
	slices.SortFunc(out, func(a, b domain.Document) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type txStoreFake struct {
	mu          sync.Mutex
	txs         map[string]*domain.Transaction
	findCalls   int
	findSince   time.Time
	createErr   error
	updateCalls int
}

func newTxStoreFake(txs ...*domain.Transaction) *txStoreFake {
	f := &txStoreFake{txs: make(map[string]*domain.Transaction)}
	for _, tx := range txs {
		f.txs[tx.ID] = tx.Clone()
	}
	return f
}

func (f *txStoreFake) Create(_ context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.txs[tx.ID]; ok {
		return domain.WrapError(domain.ErrConflict, "create transaction", fmt.Errorf("id=%s", tx.ID))
	}
	f.txs[tx.ID] = tx.Clone()
	return nil
}

func (f *txStoreFake) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTransactionNotFound, "get transaction", fmt.Errorf("id=%s", id))
	}
	return tx.Clone(), nil
}

func (f *txStoreFake) GetForUser(ctx context.Context, id, userID string) (*domain.Transaction, error) {
	tx, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, domain.WrapError(domain.ErrTransactionNotFound, "get transaction", fmt.Errorf("id=%s", id))
	}
	return tx, nil
}

func (f *txStoreFake) FindByDocumentID(_ context.Context, documentID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.HasDocument(documentID) {
			return tx.Clone(), nil
		}
	}
	return nil, domain.WrapError(domain.ErrTransactionNotFound, "find transaction by document", fmt.Errorf("document_id=%s", documentID))
}

func (f *txStoreFake) FindOpenSince(_ context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	f.findSince = since
	out := make([]domain.Transaction, 0)
	for _, tx := range f.txs {
		if tx.UserID == userID && tx.Status != domain.TxStatusCompleted && !tx.CreatedAt.Before(since) {
			out = append(out, *tx.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (f *txStoreFake) AttachDocument(_ context.Context, tx *domain.Transaction, _ domain.TransactionDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.txs[tx.ID]; !ok {
		return domain.WrapError(domain.ErrTransactionNotFound, "attach document", fmt.Errorf("id=%s", tx.ID))
	}
	f.txs[tx.ID] = tx.Clone()
	return nil
}

func (f *txStoreFake) UpdateWorkflow(_ context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	stored, ok := f.txs[tx.ID]
	if !ok {
		return domain.WrapError(domain.ErrTransactionNotFound, "update workflow", fmt.Errorf("id=%s", tx.ID))
	}
	stored.CurrentStep = tx.CurrentStep
	stored.Status = tx.Status
	stored.NextSuggestedActions = tx.Clone().NextSuggestedActions
	stored.UpdatedAt = tx.UpdatedAt
	return nil
}

func (f *txStoreFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txs)
}

type entityExtractorFake struct {
	extraction domain.Extraction
	err        error
	calls      int
}

func (f *entityExtractorFake) Extract(context.Context, string) (domain.Extraction, error) {
	f.calls++
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return f.extraction, nil
}

type mutexLockerFake struct {
	mu    sync.Mutex
	calls int
}

func (f *mutexLockerFake) WithUserLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return fn(ctx)
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.TransactionEvent
	err    error
}

func (f *eventsFake) PublishTransactionUpdated(_ context.Context, event domain.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	mu          sync.Mutex
	outcomes    []domain.CorrelationOutcome
	transitions []string
}

func (f *observerFake) ObserveCorrelation(outcome domain.CorrelationOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *observerFake) ObserveTransition(from, to domain.StepID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, string(from)+"->"+string(to))
}

func processedDoc(id, userID string, docType domain.DocumentType, supplier string, created time.Time) *domain.Document {
	return &domain.Document{
		ID:              id,
		UserID:          userID,
		DocumentType:    docType,
		ExtractedFields: []domain.ExtractedField{},
		Status:          domain.StatusProcessed,
		Entities:        &domain.Entities{Supplier: &domain.Entity{Name: supplier}},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func openTx(id, userID string, step domain.StepID, supplier string, created time.Time) *domain.Transaction {
	tx := &domain.Transaction{
		ID:        id,
		UserID:    userID,
		Entities:  domain.Entities{Supplier: &domain.Entity{Name: supplier}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := tx.SetStep(step); err != nil {
		panic(err)
	}
	return tx
}
