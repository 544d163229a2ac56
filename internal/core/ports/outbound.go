package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtraction(ctx context.Context, id string, rawText string, extraction domain.Extraction) error
	SaveEntities(ctx context.Context, id string, entities domain.Entities) error
	// AssignTransaction sets transaction_id once; a second assignment fails with domain.ErrConflict.
	AssignTransaction(ctx context.Context, id, transactionID string) error
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.Document, error)
}

// TransactionRepository persists transactions and their attached document entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.Transaction, error)
	// FindByDocumentID returns the transaction whose entries contain documentID.
	FindByDocumentID(ctx context.Context, documentID string) (*domain.Transaction, error)
	// FindOpenSince returns the user's non-completed transactions created at or after since, newest first.
	FindOpenSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	// AttachDocument appends entry and writes the mutable transaction fields in one unit.
	AttachDocument(ctx context.Context, tx *domain.Transaction, entry domain.TransactionDocument) error
	// UpdateWorkflow writes step, status, suggestions and updated_at.
	UpdateWorkflow(ctx context.Context, tx *domain.Transaction) error
}

// UserLocker serializes the correlate-then-write section per user.
type UserLocker interface {
	WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TransactionEventPublisher announces transaction changes to downstream consumers.
type TransactionEventPublisher interface {
	PublishTransactionUpdated(ctx context.Context, event domain.TransactionEvent) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// EntityExtractor turns raw text into a document type, typed fields and company entities.
type EntityExtractor interface {
	Extract(ctx context.Context, rawText string) (domain.Extraction, error)
}
