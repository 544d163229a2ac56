package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

const transactionColumns = `id, user_id, status, current_step, entities, payment_terms, total_amount, currency,
	next_suggested_actions, created_at, updated_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts the transaction row and its initial document entries atomically.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	entitiesJSON, suggestionsJSON, err := marshalTransaction(t)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, "create transaction", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO transactions (`+transactionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
			t.ID, t.UserID, string(t.Status), string(t.CurrentStep.StepID), entitiesJSON, t.PaymentTerms,
			nullableAmount(t.TotalAmount), t.Currency, suggestionsJSON, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return mapError("insert transaction", err, nil)
		}
		for i, entry := range t.Documents {
			if err := insertEntry(ctx, tx, t.ID, i, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE id = $1
`, id)
	return r.load(ctx, row)
}

func (r *TransactionRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE id = $1 AND user_id = $2
`, id, userID)
	return r.load(ctx, row)
}

// FindByDocumentID resolves the transaction holding documentID through its entry row.
func (r *TransactionRepository) FindByDocumentID(ctx context.Context, documentID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE id = (SELECT transaction_id FROM transaction_documents WHERE document_id = $1)
`, documentID)
	return r.load(ctx, row)
}

func (r *TransactionRepository) FindOpenSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE user_id = $1 AND status <> $2 AND created_at >= $3
ORDER BY created_at DESC, id ASC
`, userID, string(domain.TxStatusCompleted), since)
	if err != nil {
		return nil, mapError("find open transactions", err, nil)
	}

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			_ = rows.Close()
			return nil, mapError("scan transaction", err, nil)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, mapError("iterate transactions", err, nil)
	}
	_ = rows.Close()

	for i := range out {
		docs, err := r.entries(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Documents = docs
	}
	return out, nil
}

// AttachDocument appends entry at the end of the document list and writes the
// mutable transaction fields in the same database transaction.
func (r *TransactionRepository) AttachDocument(ctx context.Context, t *domain.Transaction, entry domain.TransactionDocument) error {
	entitiesJSON, suggestionsJSON, err := marshalTransaction(t)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, "attach document", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE transactions
SET status = $2, current_step = $3, entities = $4, payment_terms = $5, total_amount = $6, currency = $7,
	next_suggested_actions = $8, updated_at = $9
WHERE id = $1
`,
			t.ID, string(t.Status), string(t.CurrentStep.StepID), entitiesJSON, t.PaymentTerms,
			nullableAmount(t.TotalAmount), t.Currency, suggestionsJSON, t.UpdatedAt,
		)
		if err != nil {
			return mapError("update transaction", err, nil)
		}
		if err := requireRows(result, "update transaction", domain.ErrTransactionNotFound, t.ID); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(position) + 1, 0)
FROM transaction_documents
WHERE transaction_id = $1
`, t.ID)
		var position int
		if err := row.Scan(&position); err != nil {
			return mapError("next document position", err, nil)
		}
		return insertEntry(ctx, tx, t.ID, position, entry)
	})
}

func (r *TransactionRepository) UpdateWorkflow(ctx context.Context, t *domain.Transaction) error {
	suggestionsJSON, err := json.Marshal(suggestionsOrEmpty(t.NextSuggestedActions))
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE transactions
SET status = $2, current_step = $3, next_suggested_actions = $4, updated_at = $5
WHERE id = $1
`, t.ID, string(t.Status), string(t.CurrentStep.StepID), suggestionsJSON, t.UpdatedAt)
	if err != nil {
		return mapError("update transaction workflow", err, nil)
	}
	return requireRows(result, "update transaction workflow", domain.ErrTransactionNotFound, t.ID)
}

func (r *TransactionRepository) load(ctx context.Context, row *sql.Row) (*domain.Transaction, error) {
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapError("get transaction", err, domain.ErrTransactionNotFound)
	}
	docs, err := r.entries(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Documents = docs
	return &t, nil
}

func (r *TransactionRepository) entries(ctx context.Context, transactionID string) ([]domain.TransactionDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, document_type, upload_date, processed_date, status, role
FROM transaction_documents
WHERE transaction_id = $1
ORDER BY position ASC
`, transactionID)
	if err != nil {
		return nil, mapError("list transaction entries", err, nil)
	}
	defer rows.Close()

	out := make([]domain.TransactionDocument, 0)
	for rows.Next() {
		var (
			entry     domain.TransactionDocument
			docType   string
			status    string
			role      string
			processed sql.NullTime
		)
		if err := rows.Scan(&entry.DocumentID, &docType, &entry.UploadDate, &processed, &status, &role); err != nil {
			return nil, mapError("scan transaction entry", err, nil)
		}
		entry.DocumentType = domain.ParseDocumentType(docType)
		entry.Status = domain.DocumentStatus(status)
		entry.Role = domain.DocumentRole(role)
		if processed.Valid {
			t := processed.Time
			entry.ProcessedDate = &t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate transaction entries", err, nil)
	}
	return out, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, transactionID string, position int, entry domain.TransactionDocument) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO transaction_documents (transaction_id, position, document_id, document_type, upload_date, processed_date, status, role)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		transactionID, position, entry.DocumentID, string(entry.DocumentType), entry.UploadDate, entry.ProcessedDate,
		string(entry.Status), string(entry.Role),
	)
	if err != nil {
		return mapError("insert transaction entry", err, nil)
	}
	return nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		t              domain.Transaction
		status         string
		stepID         string
		entitiesRaw    []byte
		suggestionsRaw []byte
		amount         decimal.NullDecimal
	)
	err := row.Scan(
		&t.ID, &t.UserID, &status, &stepID, &entitiesRaw, &t.PaymentTerms, &amount, &t.Currency,
		&suggestionsRaw, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := t.SetStep(domain.StepID(stepID)); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if string(t.Status) != status {
		return domain.Transaction{}, fmt.Errorf("transaction %s: status %q does not match step %q", t.ID, status, stepID)
	}
	if amount.Valid {
		v := amount.Decimal
		t.TotalAmount = &v
	}
	if len(entitiesRaw) > 0 {
		if err := json.Unmarshal(entitiesRaw, &t.Entities); err != nil {
			return domain.Transaction{}, fmt.Errorf("unmarshal entities: %w", err)
		}
	}
	t.NextSuggestedActions = []domain.Suggestion{}
	if len(suggestionsRaw) > 0 {
		if err := json.Unmarshal(suggestionsRaw, &t.NextSuggestedActions); err != nil {
			return domain.Transaction{}, fmt.Errorf("unmarshal suggestions: %w", err)
		}
	}
	return t, nil
}

func marshalTransaction(t *domain.Transaction) ([]byte, []byte, error) {
	entitiesJSON, err := json.Marshal(t.Entities)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal entities: %w", err)
	}
	suggestionsJSON, err := json.Marshal(suggestionsOrEmpty(t.NextSuggestedActions))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal suggestions: %w", err)
	}
	return entitiesJSON, suggestionsJSON, nil
}

func suggestionsOrEmpty(in []domain.Suggestion) []domain.Suggestion {
	if in == nil {
		return []domain.Suggestion{}
	}
	return in
}

func nullableAmount(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
