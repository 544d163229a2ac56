package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentRole string

const (
	RoleSource    DocumentRole = "source"
	RoleGenerated DocumentRole = "generated"
	RoleReceived  DocumentRole = "received"
)

type TransactionDocument struct {
	DocumentID    string         `json:"document_id"`
	DocumentType  DocumentType   `json:"document_type"`
	UploadDate    time.Time      `json:"upload_date"`
	ProcessedDate *time.Time     `json:"processed_date,omitempty"`
	Status        DocumentStatus `json:"status"`
	Role          DocumentRole   `json:"role"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Suggestion struct {
	Action                string         `json:"action"`
	Description           string         `json:"description"`
	Priority              Priority       `json:"priority"`
	RequiredDocumentTypes []DocumentType `json:"required_document_types"`
	Confidence            float64        `json:"confidence"`
}

type Transaction struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"user_id"`
	Status               TransactionStatus     `json:"status"`
	CurrentStep          Step                  `json:"current_step"`
	Entities             Entities              `json:"entities"`
	Documents            []TransactionDocument `json:"documents"`
	PaymentTerms         string                `json:"payment_terms,omitempty"`
	TotalAmount          *decimal.Decimal      `json:"total_amount,omitempty"`
	Currency             string                `json:"currency,omitempty"`
	NextSuggestedActions []Suggestion          `json:"next_suggested_actions"`
	CreatedAt            time.Time             `json:"created_date"`
	UpdatedAt            time.Time             `json:"updated_date"`
}

// SetStep moves the transaction to a registered step and derives its status.
func (t *Transaction) SetStep(id StepID) error {
	step, ok := LookupStep(id)
	if !ok {
		return WrapError(ErrTransitionRejected, "set step", fmt.Errorf("unknown step %q", id))
	}
	status, _ := StatusOf(id)
	t.CurrentStep = step
	t.Status = status
	return nil
}

// AppendDocument adds a document entry. Entries are never removed or reordered.
func (t *Transaction) AppendDocument(entry TransactionDocument) {
	t.Documents = append(t.Documents, entry)
}

func (t *Transaction) HasDocument(documentID string) bool {
	return slices.ContainsFunc(t.Documents, func(d TransactionDocument) bool {
		return d.DocumentID == documentID
	})
}

// DocumentTypes is the accumulated set of document types attached so far.
func (t *Transaction) DocumentTypes() DocumentTypeSet {
	set := make(DocumentTypeSet, len(t.Documents))
	for _, d := range t.Documents {
		set.Add(d.DocumentType)
	}
	return set
}

// ApplyDetails fills payment terms, total amount and currency from doc when still unset.
func (t *Transaction) ApplyDetails(doc *Document) {
	if doc == nil {
		return
	}
	if t.PaymentTerms == "" {
		t.PaymentTerms = doc.Field("payment_terms")
	}
	if t.Currency == "" {
		t.Currency = strings.ToUpper(doc.Field("currency"))
	}
	if t.TotalAmount == nil {
		if amount, ok := parseAmount(doc.Field("total_amount", "grand_total", "amount")); ok {
			t.TotalAmount = &amount
		}
	}
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Decimal{}, false
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	out := *t
	out.CurrentStep = t.CurrentStep.clone()
	out.Entities = MergeEntities(t.Entities, Entities{})
	out.Documents = slices.Clone(t.Documents)
	out.NextSuggestedActions = make([]Suggestion, len(t.NextSuggestedActions))
	for i, s := range t.NextSuggestedActions {
		s.RequiredDocumentTypes = slices.Clone(s.RequiredDocumentTypes)
		out.NextSuggestedActions[i] = s
	}
	if t.TotalAmount != nil {
		amount := *t.TotalAmount
		out.TotalAmount = &amount
	}
	return &out
}

type DocumentTypeSet map[DocumentType]struct{}

func NewDocumentTypeSet(types ...DocumentType) DocumentTypeSet {
	set := make(DocumentTypeSet, len(types))
	for _, t := range types {
		set.Add(t)
	}
	return set
}

func (s DocumentTypeSet) Add(t DocumentType) {
	s[t] = struct{}{}
}

func (s DocumentTypeSet) Has(t DocumentType) bool {
	_, ok := s[t]
	return ok
}

func (s DocumentTypeSet) HasAny(types ...DocumentType) bool {
	for _, t := range types {
		if s.Has(t) {
			return true
		}
	}
	return false
}

func (s DocumentTypeSet) HasAll(types ...DocumentType) bool {
	for _, t := range types {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// Sorted lists the set in lexical order.
func (s DocumentTypeSet) Sorted() []DocumentType {
	out := make([]DocumentType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
