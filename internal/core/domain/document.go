package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentType string

const (
	DocQuotation           DocumentType = "quotation"
	DocProformaInvoice     DocumentType = "proforma_invoice"
	DocPurchaseOrder       DocumentType = "purchase_order"
	DocCommercialInvoice   DocumentType = "commercial_invoice"
	DocTaxInvoice          DocumentType = "tax_invoice"
	DocInvoice             DocumentType = "invoice"
	DocPackingList         DocumentType = "packing_list"
	DocBillOfLading        DocumentType = "bill_of_lading"
	DocDeliveryNote        DocumentType = "delivery_note"
	DocPaymentReceipt      DocumentType = "payment_receipt"
	DocCertificateOfOrigin DocumentType = "certificate_of_origin"
	DocUnknown             DocumentType = "unknown"
)

var knownDocumentTypes = map[DocumentType]struct{}{
	DocQuotation:           {},
	DocProformaInvoice:     {},
	DocPurchaseOrder:       {},
	DocCommercialInvoice:   {},
	DocTaxInvoice:          {},
	DocInvoice:             {},
	DocPackingList:         {},
	DocBillOfLading:        {},
	DocDeliveryNote:        {},
	DocPaymentReceipt:      {},
	DocCertificateOfOrigin: {},
}

// ParseDocumentType maps classifier output onto a known type; anything else is unknown.
func ParseDocumentType(raw string) DocumentType {
	t := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownDocumentTypes[t]; ok {
		return t
	}
	return DocUnknown
}

func (t DocumentType) Known() bool {
	_, ok := knownDocumentTypes[t]
	return ok
}

type ExtractedField struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
}

type Document struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Filename        string           `json:"filename"`
	MimeType        string           `json:"mime_type"`
	StoragePath     string           `json:"storage_path"`
	DocumentType    DocumentType     `json:"document_type"`
	ExtractedFields []ExtractedField `json:"extracted_fields"`
	RawText         string           `json:"raw_text,omitempty"`
	Status          DocumentStatus   `json:"status"`
	Error           string           `json:"error,omitempty"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	Entities        *Entities        `json:"entities,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Field returns the first non-empty extracted value among keys, matched case-insensitively.
func (d *Document) Field(keys ...string) string {
	if d == nil {
		return ""
	}
	for _, key := range keys {
		for _, f := range d.ExtractedFields {
			if strings.EqualFold(f.Key, key) {
				if v := strings.TrimSpace(f.Value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// Extraction is what the entity extractor returns for one document's raw text.
type Extraction struct {
	DocumentType    DocumentType     `json:"document_type"`
	ExtractedFields []ExtractedField `json:"extracted_fields"`
	Entities        Entities         `json:"entities"`
}
