// Package workflow holds the pure parts of the transaction state machine:
// the transition function and the next-action suggestion catalog.
package workflow

import "github.com/kirillkom/tradeflow/internal/core/domain"

// NoTransition is returned by Next when the document attaches without moving the step.
const NoTransition domain.StepID = ""

var invoiceTypes = []domain.DocumentType{
	domain.DocCommercialInvoice,
	domain.DocTaxInvoice,
}

type rule struct {
	from domain.StepID
	to   domain.StepID
	when func(accumulated domain.DocumentTypeSet, incoming domain.DocumentType) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		from: domain.StepQuotationReceived,
		to:   domain.StepPOIssued,
		when: incomingIs(domain.DocPurchaseOrder),
	},
	{
		from: domain.StepProformaInvoiceReceived,
		to:   domain.StepPOIssued,
		when: incomingIs(domain.DocPurchaseOrder),
	},
	{
		from: domain.StepPOIssued,
		to:   domain.StepProformaReceived,
		when: func(acc domain.DocumentTypeSet, in domain.DocumentType) bool {
			return acc.Has(domain.DocQuotation) && in == domain.DocProformaInvoice
		},
	},
	{
		from: domain.StepPOIssued,
		to:   domain.StepProformaReceived,
		when: func(acc domain.DocumentTypeSet, _ domain.DocumentType) bool {
			return acc.Has(domain.DocProformaInvoice)
		},
	},
	{
		from: domain.StepProformaReceived,
		to:   domain.StepInvoiceReceived,
		when: incomingIs(invoiceTypes...),
	},
	{
		from: domain.StepOrderReady,
		to:   domain.StepInvoiceReceived,
		when: incomingIs(invoiceTypes...),
	},
	{
		from: domain.StepInvoiceReceived,
		to:   domain.StepCompleted,
		when: func(acc domain.DocumentTypeSet, _ domain.DocumentType) bool {
			return acc.HasAny(domain.DocCommercialInvoice, domain.DocTaxInvoice, domain.DocInvoice) &&
				acc.Has(domain.DocPackingList)
		},
	},
}

// Next decides the step that follows current once incoming is attached.
// accumulated must already contain incoming. It returns NoTransition when no rule applies.
func Next(current domain.StepID, accumulated domain.DocumentTypeSet, incoming domain.DocumentType) domain.StepID {
	if accumulated == nil {
		accumulated = domain.NewDocumentTypeSet()
	}
	for _, r := range rules {
		if r.from != current {
			continue
		}
		if r.when(accumulated, incoming) {
			return r.to
		}
	}
	return NoTransition
}

func incomingIs(types ...domain.DocumentType) func(domain.DocumentTypeSet, domain.DocumentType) bool {
	return func(_ domain.DocumentTypeSet, in domain.DocumentType) bool {
		for _, t := range types {
			if in == t {
				return true
			}
		}
		return false
	}
}
