package workflow

import (
	"testing"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

func TestNextTransitionTable(t *testing.T) {
	cases := []struct {
		name     string
		current  domain.StepID
		acc      []domain.DocumentType
		incoming domain.DocumentType
		want     domain.StepID
	}{
		{"quotation then po", domain.StepQuotationReceived, []domain.DocumentType{domain.DocQuotation, domain.DocPurchaseOrder}, domain.DocPurchaseOrder, domain.StepPOIssued},
		{"proforma then po", domain.StepProformaInvoiceReceived, []domain.DocumentType{domain.DocProformaInvoice, domain.DocPurchaseOrder}, domain.DocPurchaseOrder, domain.StepPOIssued},
		{"po with quotation gets proforma", domain.StepPOIssued, []domain.DocumentType{domain.DocQuotation, domain.DocPurchaseOrder, domain.DocProformaInvoice}, domain.DocProformaInvoice, domain.StepProformaReceived},
		{"po with proforma already present", domain.StepPOIssued, []domain.DocumentType{domain.DocProformaInvoice, domain.DocPurchaseOrder, domain.DocDeliveryNote}, domain.DocDeliveryNote, domain.StepProformaReceived},
		{"po without proforma", domain.StepPOIssued, []domain.DocumentType{domain.DocPurchaseOrder, domain.DocPaymentReceipt}, domain.DocPaymentReceipt, NoTransition},
		{"proforma received commercial invoice", domain.StepProformaReceived, []domain.DocumentType{domain.DocCommercialInvoice}, domain.DocCommercialInvoice, domain.StepInvoiceReceived},
		{"proforma received tax invoice", domain.StepProformaReceived, []domain.DocumentType{domain.DocTaxInvoice}, domain.DocTaxInvoice, domain.StepInvoiceReceived},
		{"proforma received plain invoice", domain.StepProformaReceived, []domain.DocumentType{domain.DocInvoice}, domain.DocInvoice, NoTransition},
		{"order ready invoice", domain.StepOrderReady, []domain.DocumentType{domain.DocTaxInvoice}, domain.DocTaxInvoice, domain.StepInvoiceReceived},
		{"invoice received packing list", domain.StepInvoiceReceived, []domain.DocumentType{domain.DocCommercialInvoice, domain.DocPackingList}, domain.DocPackingList, domain.StepCompleted},
		{"invoice received without packing list", domain.StepInvoiceReceived, []domain.DocumentType{domain.DocCommercialInvoice, domain.DocBillOfLading}, domain.DocBillOfLading, NoTransition},
		{"quotation gets unrelated doc", domain.StepQuotationReceived, []domain.DocumentType{domain.DocQuotation, domain.DocPackingList}, domain.DocPackingList, NoTransition},
		{"payment made has no rule", domain.StepPaymentMade, []domain.DocumentType{domain.DocCommercialInvoice}, domain.DocCommercialInvoice, NoTransition},
		{"unknown step", domain.StepID("bogus"), nil, domain.DocPurchaseOrder, NoTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Next(tc.current, domain.NewDocumentTypeSet(tc.acc...), tc.incoming)
			if got != tc.want {
				t.Fatalf("Next(%s, %v, %s) = %q, want %q", tc.current, tc.acc, tc.incoming, got, tc.want)
			}
		})
	}
}

func TestCompletedHasNoOutgoingTransition(t *testing.T) {
	all := []domain.DocumentType{
		domain.DocQuotation, domain.DocProformaInvoice, domain.DocPurchaseOrder, domain.DocCommercialInvoice,
		domain.DocTaxInvoice, domain.DocInvoice, domain.DocPackingList, domain.DocBillOfLading,
		domain.DocDeliveryNote, domain.DocPaymentReceipt, domain.DocCertificateOfOrigin, domain.DocUnknown,
	}
	acc := domain.NewDocumentTypeSet(all...)
	for _, incoming := range all {
		if got := Next(domain.StepCompleted, acc, incoming); got != NoTransition {
			t.Fatalf("completed must be terminal, got transition to %s on %s", got, incoming)
		}
	}
}

func TestHappyPathStatusIsMonotonic(t *testing.T) {
	sequence := []domain.DocumentType{
		domain.DocQuotation,
		domain.DocPurchaseOrder,
		domain.DocProformaInvoice,
		domain.DocCommercialInvoice,
		domain.DocPackingList,
	}

	current := domain.InitialStepFor(sequence[0])
	acc := domain.NewDocumentTypeSet(sequence[0])
	status, _ := domain.StatusOf(current)
	rank := statusRank(status)

	visited := []domain.StepID{current}
	for _, incoming := range sequence[1:] {
		acc.Add(incoming)
		next := Next(current, acc, incoming)
		if next == NoTransition {
			t.Fatalf("expected transition from %s on %s", current, incoming)
		}
		nextStatus, ok := domain.StatusOf(next)
		if !ok {
			t.Fatalf("step %s has no status", next)
		}
		if r := statusRank(nextStatus); r <= rank {
			t.Fatalf("status went from rank %d to %d (%s)", rank, r, nextStatus)
		} else {
			rank = r
		}
		current = next
		visited = append(visited, current)
	}

	want := []domain.StepID{
		domain.StepQuotationReceived,
		domain.StepPOIssued,
		domain.StepProformaReceived,
		domain.StepInvoiceReceived,
		domain.StepCompleted,
	}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}

// statusRank orders statuses by their first appearance in workflow order.
func statusRank(status domain.TransactionStatus) int {
	seen := make(map[domain.TransactionStatus]bool)
	for _, step := range domain.Steps() {
		s, _ := domain.StatusOf(step.StepID)
		if s == status {
			return len(seen)
		}
		seen[s] = true
	}
	return -1
}
