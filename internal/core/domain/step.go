package domain

import "slices"

type StepID string

const (
	StepQuotationReceived       StepID = "quotation_received"
	StepProformaInvoiceReceived StepID = "proforma_invoice_received"
	StepPOIssued                StepID = "po_issued"
	StepProformaReceived        StepID = "proforma_received"
	StepPaymentMade             StepID = "payment_made"
	StepOrderReady              StepID = "order_ready"
	StepInvoiceReceived         StepID = "invoice_received"
	StepCompleted               StepID = "completed"
)

type TransactionStatus string

const (
	TxStatusQuotationReceived TransactionStatus = "quotation_received"
	TxStatusPOIssued          TransactionStatus = "po_issued"
	TxStatusProformaReceived  TransactionStatus = "proforma_received"
	TxStatusPaymentMade       TransactionStatus = "payment_made"
	TxStatusOrderReady        TransactionStatus = "order_ready"
	TxStatusInvoiceReceived   TransactionStatus = "invoice_received"
	TxStatusCompleted         TransactionStatus = "completed"
)

type Step struct {
	StepID                StepID         `json:"step_id"`
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	RequiredDocumentTypes []DocumentType `json:"required_document_types"`
	OptionalDocumentTypes []DocumentType `json:"optional_document_types"`
	ExpectedNextStepIDs   []StepID       `json:"expected_next_step_ids"`
}

func (s Step) clone() Step {
	s.RequiredDocumentTypes = slices.Clone(s.RequiredDocumentTypes)
	s.OptionalDocumentTypes = slices.Clone(s.OptionalDocumentTypes)
	s.ExpectedNextStepIDs = slices.Clone(s.ExpectedNextStepIDs)
	return s
}

func (s Step) Terminal() bool {
	return len(s.ExpectedNextStepIDs) == 0
}

type stepDef struct {
	step   Step
	status TransactionStatus
}

// stepOrder fixes registry iteration order; StepForStatus relies on it.
var stepOrder = []stepDef{
	{
		step: Step{
			StepID:                StepQuotationReceived,
			Name:                  "Quotation Received",
			Description:           "A supplier quotation opened the deal; a purchase order is expected next.",
			RequiredDocumentTypes: []DocumentType{DocQuotation},
			OptionalDocumentTypes: []DocumentType{DocProformaInvoice},
			ExpectedNextStepIDs:   []StepID{StepPOIssued},
		},
		status: TxStatusQuotationReceived,
	},
	{
		step: Step{
			StepID:                StepProformaInvoiceReceived,
			Name:                  "Proforma Invoice Received",
			Description:           "A proforma invoice opened the deal in place of a quotation.",
			RequiredDocumentTypes: []DocumentType{DocProformaInvoice},
			OptionalDocumentTypes: []DocumentType{DocQuotation},
			ExpectedNextStepIDs:   []StepID{StepPOIssued},
		},
		status: TxStatusQuotationReceived,
	},
	{
		step: Step{
			StepID:                StepPOIssued,
			Name:                  "Purchase Order Issued",
			Description:           "The buyer issued a purchase order to the supplier.",
			RequiredDocumentTypes: []DocumentType{DocPurchaseOrder},
			OptionalDocumentTypes: []DocumentType{DocQuotation, DocProformaInvoice},
			ExpectedNextStepIDs:   []StepID{StepProformaReceived, StepPaymentMade},
		},
		status: TxStatusPOIssued,
	},
	{
		step: Step{
			StepID:                StepProformaReceived,
			Name:                  "Proforma Received",
			Description:           "The supplier confirmed the order with a proforma invoice.",
			RequiredDocumentTypes: []DocumentType{DocProformaInvoice},
			OptionalDocumentTypes: []DocumentType{DocPaymentReceipt},
			ExpectedNextStepIDs:   []StepID{StepPaymentMade, StepInvoiceReceived},
		},
		status: TxStatusProformaReceived,
	},
	{
		step: Step{
			StepID:                StepPaymentMade,
			Name:                  "Payment Made",
			Description:           "Payment or deposit was sent to the supplier.",
			RequiredDocumentTypes: []DocumentType{DocPaymentReceipt},
			OptionalDocumentTypes: nil,
			ExpectedNextStepIDs:   []StepID{StepOrderReady},
		},
		status: TxStatusPaymentMade,
	},
	{
		step: Step{
			StepID:                StepOrderReady,
			Name:                  "Order Ready",
			Description:           "Goods are ready for shipment.",
			RequiredDocumentTypes: nil,
			OptionalDocumentTypes: []DocumentType{DocPackingList, DocBillOfLading, DocDeliveryNote},
			ExpectedNextStepIDs:   []StepID{StepInvoiceReceived},
		},
		status: TxStatusOrderReady,
	},
	{
		step: Step{
			StepID:                StepInvoiceReceived,
			Name:                  "Invoice Received",
			Description:           "The final commercial or tax invoice arrived; a packing list closes the deal.",
			RequiredDocumentTypes: []DocumentType{DocCommercialInvoice},
			OptionalDocumentTypes: []DocumentType{DocTaxInvoice, DocInvoice, DocPackingList, DocCertificateOfOrigin},
			ExpectedNextStepIDs:   []StepID{StepCompleted},
		},
		status: TxStatusInvoiceReceived,
	},
	{
		step: Step{
			StepID:                StepCompleted,
			Name:                  "Completed",
			Description:           "All expected documents were received.",
			RequiredDocumentTypes: nil,
			OptionalDocumentTypes: nil,
			ExpectedNextStepIDs:   nil,
		},
		status: TxStatusCompleted,
	},
}

var stepRegistry = func() map[StepID]stepDef {
	out := make(map[StepID]stepDef, len(stepOrder))
	for _, def := range stepOrder {
		out[def.step.StepID] = def
	}
	return out
}()

// LookupStep returns a copy of the registered step.
func LookupStep(id StepID) (Step, bool) {
	def, ok := stepRegistry[id]
	if !ok {
		return Step{}, false
	}
	return def.step.clone(), true
}

// Steps lists every registered step in workflow order.
func Steps() []Step {
	out := make([]Step, 0, len(stepOrder))
	for _, def := range stepOrder {
		out = append(out, def.step.clone())
	}
	return out
}

// StatusOf is the canonical status for a step id.
func StatusOf(id StepID) (TransactionStatus, bool) {
	def, ok := stepRegistry[id]
	return def.status, ok
}

// StepForStatus picks the first step in workflow order whose status equals status.
func StepForStatus(status string) (Step, bool) {
	for _, def := range stepOrder {
		if string(def.status) == status {
			return def.step.clone(), true
		}
	}
	return Step{}, false
}

// InitialStepFor selects the first step of a brand-new transaction.
func InitialStepFor(docType DocumentType) StepID {
	switch docType {
	case DocProformaInvoice:
		return StepProformaInvoiceReceived
	case DocPurchaseOrder:
		return StepPOIssued
	default:
		return StepQuotationReceived
	}
}
