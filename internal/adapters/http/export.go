package httpadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetTransaction = "Transaction"
	sheetDocuments   = "Documents"
	sheetSuggestions = "Suggestions"
	exportTimeLayout = time.RFC3339
	defaultSheetName = "Sheet1"
)

// buildTransactionWorkbook renders a transaction report with one sheet per section.
func buildTransactionWorkbook(tx *domain.Transaction, docs []domain.Document) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName(defaultSheetName, sheetTransaction); err != nil {
		book.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetDocuments, sheetSuggestions} {
		if _, err := book.NewSheet(name); err != nil {
			book.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		book.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	totalAmount := ""
	if tx.TotalAmount != nil {
		totalAmount = tx.TotalAmount.StringFixed(2)
	}
	summary := [][]any{
		{"Field", "Value"},
		{"Transaction ID", tx.ID},
		{"Status", string(tx.Status)},
		{"Current step", tx.CurrentStep.Name},
		{"Supplier", tx.Entities.Supplier.NameOrEmpty()},
		{"Trading company", tx.Entities.TradingCompany.NameOrEmpty()},
		{"Customer", tx.Entities.Customer.NameOrEmpty()},
		{"Consignee", tx.Entities.Consignee.NameOrEmpty()},
		{"Payment terms", tx.PaymentTerms},
		{"Total amount", totalAmount},
		{"Currency", tx.Currency},
		{"Created", tx.CreatedAt.UTC().Format(exportTimeLayout)},
		{"Updated", tx.UpdatedAt.UTC().Format(exportTimeLayout)},
	}

	documents := [][]any{{"Document ID", "Type", "Role", "Filename", "Status", "Uploaded", "Processed"}}
	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	for _, entry := range tx.Documents {
		processed := ""
		if entry.ProcessedDate != nil {
			processed = entry.ProcessedDate.UTC().Format(exportTimeLayout)
		}
		documents = append(documents, []any{
			entry.DocumentID,
			string(entry.DocumentType),
			string(entry.Role),
			byID[entry.DocumentID].Filename,
			string(entry.Status),
			entry.UploadDate.UTC().Format(exportTimeLayout),
			processed,
		})
	}

	suggestions := [][]any{{"Action", "Description", "Priority", "Required documents", "Confidence"}}
	for _, s := range tx.NextSuggestedActions {
		required := make([]string, len(s.RequiredDocumentTypes))
		for i, t := range s.RequiredDocumentTypes {
			required[i] = string(t)
		}
		suggestions = append(suggestions, []any{
			s.Action,
			s.Description,
			string(s.Priority),
			strings.Join(required, ", "),
			s.Confidence,
		})
	}

	for sheet, rows := range map[string][][]any{
		sheetTransaction: summary,
		sheetDocuments:   documents,
		sheetSuggestions: suggestions,
	} {
		if err := writeRows(book, sheet, rows, headerStyle); err != nil {
			book.Close()
			return nil, err
		}
	}
	return book, nil
}

func writeRows(book *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := book.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
