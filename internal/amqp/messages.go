package amqp

import (
	"encoding/json"
	"time"
)

// BudgetChangedMessage announces that a new revision of the budget document
// has been saved. It carries no budget data; consumers load the document
// from storage themselves.
type BudgetChangedMessage struct {
	Revision  uint64    `json:"revision"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetChangedMessage(revision uint64, month string) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		Revision:  revision,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
