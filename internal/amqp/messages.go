package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event types published after a unit of work commits.
const (
	EventEnvelopeTransferred = "envelope.transferred"
	EventSplitsSaved         = "transaction.splits_saved"
	EventPlanApplied         = "allocation_plan.applied"
	EventCardSpendRecorded   = "card.spend_recorded"
	EventPaymentReconciled   = "card.payment_reconciled"
	EventCycleClosed         = "card.cycle_closed"
	EventDebtPaidOff         = "debt.paid_off"
	EventIncomeReconciled    = "income.reconciled"
)

// LedgerEventMessage is the lightweight notification sent for every
// committed ledger mutation. It carries ids and the headline amount, not
// row data; consumers needing detail fetch it from storage.
type LedgerEventMessage struct {
	Type        string    `json:"type"`
	OwnerID     string    `json:"owner_id"`
	EntityID    string    `json:"entity_id"`
	AmountCents int64     `json:"amount_cents"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event message stamped with the current time.
func NewLedgerEvent(eventType, ownerID, entityID string, amountCents int64, detail string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Type:        eventType,
		OwnerID:     ownerID,
		EntityID:    entityID,
		AmountCents: amountCents,
		Detail:      detail,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON creates a message from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
