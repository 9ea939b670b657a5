package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// EventType tells consumers why transactions were published.
type EventType string

const (
	// EventGenerated carries instances produced by a recurring run, pending
	// and auto-confirmed alike.
	EventGenerated EventType = "transactions.generated"
	// EventConfirmed carries a single transaction that just became confirmed.
	EventConfirmed EventType = "transaction.confirmed"
)

// TransactionEvent is the message body published on the exchange.
type TransactionEvent struct {
	Type         EventType          `json:"type"`
	Transactions []core.Transaction `json:"transactions"`
	Timestamp    time.Time          `json:"timestamp"`
}

func NewTransactionEvent(t EventType, txs []core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:         t,
		Transactions: txs,
		Timestamp:    time.Now().UTC(),
	}
}

// Confirmed returns the transactions of the event that are confirmed.
func (e *TransactionEvent) Confirmed() []core.Transaction {
	var out []core.Transaction
	for _, tx := range e.Transactions {
		if tx.Status == core.StatusConfirmed {
			out = append(out, tx)
		}
	}
	return out
}

// ToJSON converts the message to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventGenerated, EventConfirmed:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
