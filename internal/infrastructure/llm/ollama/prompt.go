package ollama

import (
	"strings"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

const maxPromptSnippet = 6000

var promptDocumentTypes = []domain.DocumentType{
	domain.DocQuotation,
	domain.DocProformaInvoice,
	domain.DocPurchaseOrder,
	domain.DocCommercialInvoice,
	domain.DocTaxInvoice,
	domain.DocInvoice,
	domain.DocPackingList,
	domain.DocBillOfLading,
	domain.DocDeliveryNote,
	domain.DocPaymentReceipt,
	domain.DocCertificateOfOrigin,
	domain.DocUnknown,
}

func buildExtractionPrompt(text string) string {
	snippet := text
	if len(snippet) > maxPromptSnippet {
		snippet = snippet[:maxPromptSnippet]
	}

	types := make([]string, len(promptDocumentTypes))
	for i, t := range promptDocumentTypes {
		types[i] = string(t)
	}

	return `You extract data from international trade documents.
Return one strict JSON object with keys:
document_type (one of: ` + strings.Join(types, ", ") + `),
extracted_fields (array of {key, value, confidence from 0 to 1, type}; use snake_case keys such as
supplier_name, buyer_name, document_number, document_date, payment_terms, currency, total_amount, incoterms),
entities (object with supplier, trading_company, customer, consignee; each {name, address, contact, email},
use empty strings for unknown values).
No markdown, no extra keys.

Document:
` + snippet
}
