package amqp

import (
	"encoding/json"
	"time"
)

// TransactionBookedMessage announces one committed ledger transaction.
// It carries identifiers only; consumers fetch the full record from the
// ledger store so the queue never holds monetary data.
type TransactionBookedMessage struct {
	TransactionID string    `json:"transaction_id"`
	RuleID        int64     `json:"rule_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionBookedMessage(txID string, ruleID int64) *TransactionBookedMessage {
	return &TransactionBookedMessage{
		TransactionID: txID,
		RuleID:        ruleID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionBookedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionBookedMessageFromJSON(data []byte) (*TransactionBookedMessage, error) {
	var msg TransactionBookedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
