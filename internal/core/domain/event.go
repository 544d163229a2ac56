package domain

import "time"

type CorrelationOutcome string

const (
	OutcomeCreated         CorrelationOutcome = "created"
	OutcomeAttached        CorrelationOutcome = "attached"
	OutcomeAlreadyAttached CorrelationOutcome = "already_attached"
)

// TransactionEvent is published after a document changes a transaction.
type TransactionEvent struct {
	TransactionID string             `json:"transaction_id"`
	UserID        string             `json:"user_id"`
	DocumentID    string             `json:"document_id"`
	Outcome       CorrelationOutcome `json:"outcome"`
	FromStep      StepID             `json:"from_step,omitempty"`
	ToStep        StepID             `json:"to_step"`
	Status        TransactionStatus  `json:"status"`
	OccurredAt    time.Time          `json:"occurred_at"`
}
