package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

const documentColumns = `id, user_id, filename, mime_type, storage_path, document_type, extracted_fields, raw_text,
	status, error_message, transaction_id, entities, processed_at, created_at, updated_at`

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	fieldsJSON, err := marshalFields(doc.ExtractedFields)
	if err != nil {
		return err
	}
	entitiesJSON, err := marshalEntities(doc.Entities)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		doc.ID, doc.UserID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.DocumentType), fieldsJSON, doc.RawText,
		string(doc.Status), nullableString(doc.Error), nullableString(doc.TransactionID), entitiesJSON, doc.ProcessedAt,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return mapError("insert document", err, nil)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapError("get document", err, domain.ErrDocumentNotFound)
	}
	return &doc, nil
}

// UpdateStatus also stamps processed_at when the document reaches processed.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	now := r.now()
	var processedAt any
	if status == domain.StatusProcessed {
		processedAt = now
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, processed_at = COALESCE($4, processed_at), updated_at = $5
WHERE id = $1
`, id, string(status), nullableString(errMessage), processedAt, now)
	if err != nil {
		return mapError("update document status", err, nil)
	}
	return requireRows(result, "update document status", domain.ErrDocumentNotFound, id)
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, rawText string, extraction domain.Extraction) error {
	fieldsJSON, err := marshalFields(extraction.ExtractedFields)
	if err != nil {
		return err
	}
	entitiesJSON, err := marshalEntities(&extraction.Entities)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET raw_text = $2, document_type = $3, extracted_fields = $4, entities = $5, updated_at = $6
WHERE id = $1
`, id, rawText, string(extraction.DocumentType), fieldsJSON, entitiesJSON, r.now())
	if err != nil {
		return mapError("save extraction", err, nil)
	}
	return requireRows(result, "save extraction", domain.ErrDocumentNotFound, id)
}

func (r *DocumentRepository) SaveEntities(ctx context.Context, id string, entities domain.Entities) error {
	entitiesJSON, err := marshalEntities(&entities)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET entities = $2, updated_at = $3
WHERE id = $1
`, id, entitiesJSON, r.now())
	if err != nil {
		return mapError("save entities", err, nil)
	}
	return requireRows(result, "save entities", domain.ErrDocumentNotFound, id)
}

// AssignTransaction only writes when transaction_id is still empty.
func (r *DocumentRepository) AssignTransaction(ctx context.Context, id, transactionID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET transaction_id = $2, updated_at = $3
WHERE id = $1 AND transaction_id IS NULL
`, id, transactionID, r.now())
	if err != nil {
		return mapError("assign transaction", err, nil)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError("assign transaction: rows affected", err, nil)
	}
	if rows > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.TransactionID == transactionID {
		return nil
	}
	return domain.WrapError(domain.ErrConflict, "assign transaction",
		fmt.Errorf("document %s already belongs to transaction %s", id, current.TransactionID))
}

func (r *DocumentRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE transaction_id = $1
ORDER BY created_at ASC, id ASC
`, transactionID)
	if err != nil {
		return nil, mapError("list transaction documents", err, nil)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, mapError("scan document", err, nil)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate documents", err, nil)
	}
	return out, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc           domain.Document
		docType       string
		status        string
		fieldsRaw     []byte
		entitiesRaw   []byte
		errMessage    sql.NullString
		transactionID sql.NullString
		processedAt   sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &docType, &fieldsRaw, &doc.RawText,
		&status, &errMessage, &transactionID, &entitiesRaw, &processedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}

	doc.DocumentType = domain.ParseDocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	doc.Error = errMessage.String
	doc.TransactionID = transactionID.String
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}

	doc.ExtractedFields = []domain.ExtractedField{}
	if len(fieldsRaw) > 0 {
		if err := json.Unmarshal(fieldsRaw, &doc.ExtractedFields); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal extracted fields: %w", err)
		}
	}
	if len(entitiesRaw) > 0 {
		var entities domain.Entities
		if err := json.Unmarshal(entitiesRaw, &entities); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal entities: %w", err)
		}
		doc.Entities = &entities
	}
	return doc, nil
}

func marshalFields(fields []domain.ExtractedField) ([]byte, error) {
	if fields == nil {
		fields = []domain.ExtractedField{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal extracted fields: %w", err)
	}
	return raw, nil
}

// marshalEntities keeps nil as SQL NULL so "not extracted" survives a round trip.
func marshalEntities(entities *domain.Entities) (any, error) {
	if entities == nil {
		return nil, nil
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("marshal entities: %w", err)
	}
	return raw, nil
}
