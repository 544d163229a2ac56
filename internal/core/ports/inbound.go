package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, userID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// WorkflowOrchestrator correlates a processed document into a transaction and advances its workflow.
type WorkflowOrchestrator interface {
	ProcessDocumentWorkflow(ctx context.Context, doc *domain.Document) (*domain.Transaction, error)
}

// TransactionService is the inbound read/override surface over transactions.
type TransactionService interface {
	GetTransaction(ctx context.Context, transactionID, userID string) (*domain.Transaction, error)
	GetTransactionDocuments(ctx context.Context, transactionID string) ([]domain.Document, error)
	UpdateTransactionStatus(ctx context.Context, transactionID, userID, status string) (*domain.Transaction, error)
}
