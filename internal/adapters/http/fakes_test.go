package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/core/domain"
)

type ingestFake struct {
	err        error
	lastUserID string
}

func (f *ingestFake) Upload(_ context.Context, userID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	f.lastUserID = userID

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		UserID:      userID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, UserID: "user-1", Filename: "a.txt", MimeType: "text/plain", StoragePath: "a", Status: domain.StatusProcessed}, nil
}

type txServiceFake struct {
	tx        *domain.Transaction
	docs      []domain.Document
	err       error
	updateErr error

	gotStatus string
}

func (f *txServiceFake) GetTransaction(_ context.Context, transactionID, userID string) (*domain.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.tx == nil || f.tx.ID != transactionID || f.tx.UserID != userID {
		return nil, domain.WrapError(domain.ErrTransactionNotFound, "get transaction", fmt.Errorf("id=%s", transactionID))
	}
	return f.tx.Clone(), nil
}

func (f *txServiceFake) GetTransactionDocuments(context.Context, string) ([]domain.Document, error) {
	return f.docs, nil
}

func (f *txServiceFake) UpdateTransactionStatus(ctx context.Context, transactionID, userID, status string) (*domain.Transaction, error) {
	f.gotStatus = status
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	tx, err := f.GetTransaction(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}
	step, ok := domain.StepForStatus(status)
	if !ok {
		return nil, domain.WrapError(domain.ErrTransitionRejected, "update status", errors.New(status))
	}
	if err := tx.SetStep(step.StepID); err != nil {
		return nil, err
	}
	return tx, nil
}

func sampleTransaction() *domain.Transaction {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	processed := created.Add(time.Minute)
	amount := decimal.RequireFromString("12500.50")
	tx := &domain.Transaction{
		ID:       "tx-1",
		UserID:   "user-1",
		Entities: domain.Entities{Supplier: &domain.Entity{Name: "Acme Ltd"}},
		Documents: []domain.TransactionDocument{
			{DocumentID: "doc-1", DocumentType: domain.DocQuotation, UploadDate: created, ProcessedDate: &processed, Status: domain.StatusProcessed, Role: domain.RoleSource},
			{DocumentID: "doc-2", DocumentType: domain.DocPurchaseOrder, UploadDate: created, Status: domain.StatusProcessed, Role: domain.RoleGenerated},
		},
		PaymentTerms: "30% deposit",
		TotalAmount:  &amount,
		Currency:     "USD",
		NextSuggestedActions: []domain.Suggestion{
			{Action: "request_proforma", Description: "Ask the supplier for a proforma invoice", Priority: domain.PriorityHigh, RequiredDocumentTypes: []domain.DocumentType{domain.DocProformaInvoice}, Confidence: 0.9},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := tx.SetStep(domain.StepPOIssued); err != nil {
		panic(err)
	}
	return tx
}

func newTestHandler(cfg config.Config, txs *txServiceFake) http.Handler {
	if txs == nil {
		txs = &txServiceFake{}
	}
	return NewRouter(cfg, &ingestFake{}, docsFake{}, txs, nil, nil).Handler()
}
