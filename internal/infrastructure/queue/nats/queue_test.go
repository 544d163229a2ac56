package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

func TestIngestMessageCarriesPublishTime(t *testing.T) {
	published := time.Date(2026, 3, 10, 12, 0, 0, 123, time.UTC)
	msg := newIngestMessage("documents.ingest", "doc-1", published)

	if string(msg.Data) != "doc-1" || msg.Subject != "documents.ingest" {
		t.Fatalf("unexpected message: subject=%s data=%s", msg.Subject, msg.Data)
	}
	got, ok := publishedAtOf(msg)
	if !ok || !got.Equal(published) {
		t.Fatalf("expected published at %s, got %s ok=%v", published, got, ok)
	}
}

func TestPublishedAtOfIgnoresMissingHeader(t *testing.T) {
	if _, ok := publishedAtOf(&nats.Msg{Data: []byte("doc-1")}); ok {
		t.Fatalf("expected no publish time without header")
	}
	msg := nats.NewMsg("documents.ingest")
	msg.Header.Set(publishedAtHdr, "yesterday")
	if _, ok := publishedAtOf(msg); ok {
		t.Fatalf("expected malformed header to be ignored")
	}
}

func TestEventMessageEncodesTransactionEvent(t *testing.T) {
	event := domain.TransactionEvent{
		TransactionID: "tx-1",
		UserID:        "user-1",
		DocumentID:    "doc-2",
		Outcome:       domain.OutcomeAttached,
		FromStep:      domain.StepQuotationReceived,
		ToStep:        domain.StepPOIssued,
		Status:        domain.TxStatusPOIssued,
		OccurredAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	msg, err := newEventMessage("transactions.updated", event)
	if err != nil {
		t.Fatalf("newEventMessage() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded["transaction_id"] != "tx-1" || decoded["to_step"] != "po_issued" || decoded["outcome"] != "attached" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
	if msg.Header.Get(eventTypeHeader) != "transaction.updated" {
		t.Fatalf("expected event type header, got %v", msg.Header)
	}
}

func TestPublishTransactionUpdatedDisabledWithoutSubject(t *testing.T) {
	q := &Queue{}
	if err := q.PublishTransactionUpdated(context.Background(), domain.TransactionEvent{TransactionID: "tx-1"}); err != nil {
		t.Fatalf("expected no-op without events subject, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(nats.ErrTimeout); !class.Retryable {
		t.Fatalf("expected timeout to be retryable")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected cancellation to be neither retried nor recorded")
	}
	if class := classifyNATSError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("expected bad subject to be permanent")
	}
	if class := classifyNATSError(errors.New("boom")); class.Retryable {
		t.Fatalf("expected unknown error to be permanent")
	}
}
