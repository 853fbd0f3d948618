package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a pending event in the transactional outbox.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // "credential" or "enrollment"
	AggregateID   string
	EventType     string // e.g. "credential.issued"
	Payload       []byte // JSON-encoded audit.Event
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil until published to Kafka
}

// IsPending returns true if this entry has not been processed yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a new outbox entry with a generated UUID.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}
