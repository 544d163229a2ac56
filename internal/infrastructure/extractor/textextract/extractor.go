package textextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/core/ports"
)

const maxSourceBytes = 32 << 20

type format int

const (
	formatPlain format = iota
	formatPDF
	formatSpreadsheet
)

// Extractor reads a stored document and returns its plain text.
// PDF and XLSX sources are decoded, everything else must be valid UTF-8.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > maxSourceBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("%s exceeds %d bytes", doc.Filename, maxSourceBytes))
	}

	var text string
	switch detectFormat(doc.MimeType, doc.Filename, raw) {
	case formatPDF:
		text, err = pdfText(raw)
	case formatSpreadsheet:
		text, err = spreadsheetText(raw)
	default:
		if !utf8.Valid(raw) {
			return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported binary format: %s", doc.Filename))
		}
		text = string(raw)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return strings.TrimSpace(text), nil
}

func detectFormat(mimeType, filename string, raw []byte) format {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case mimeType == "application/pdf", ext == ".pdf", bytes.HasPrefix(raw, []byte("%PDF-")):
		return formatPDF
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ext == ".xlsx":
		return formatSpreadsheet
	default:
		return formatPlain
	}
}
