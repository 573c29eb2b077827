package amqp

import (
	"encoding/json"
	"time"

	"dailyexpense/internal/core"

	"github.com/google/uuid"
)

// Expense event types.
const (
	EventCreated = "expense.created"
	EventDeleted = "expense.deleted"
)

// ExpenseEvent tells listeners that the expense table changed. It carries the
// record itself so consumers never need to read the local database.
type ExpenseEvent struct {
	MessageID   string    `json:"message_id"`
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Category    string    `json:"category,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event for e with a fresh message id.
func NewExpenseEvent(eventType string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID:   uuid.NewString(),
		Type:        eventType,
		ID:          e.ID,
		Title:       e.Title,
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		OccurredAt:  e.Timestamp,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON creates a message from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportExport is a rendered report travelling to the export worker. The body
// is sent as the raw message payload, not JSON.
type ReportExport struct {
	MessageID string
	Title     string
	MIMEType  string
	Body      []byte
	CreatedAt time.Time
}
