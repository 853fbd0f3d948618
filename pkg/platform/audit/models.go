// Package audit records credential lifecycle events. Events are written to the
// transactional outbox alongside the change they describe and published to
// Kafka by the outbox worker.
package audit

import (
	"time"
)

type EventType string

const (
	EventCredentialIssued   EventType = "credential.issued"
	EventCredentialRevoked  EventType = "credential.revoked"
	EventReceiptNumbered    EventType = "credential.receipt_numbered"
	EventEnrollmentUpdated  EventType = "enrollment.updated"
	EventVerificationFailed EventType = "verification.failed"
)

// Event is the JSON payload carried by an outbox entry.
// Verification tokens are never part of an event.
type Event struct {
	Type         EventType         `json:"type"`
	Timestamp    time.Time         `json:"timestamp"`
	ActorID      string            `json:"actor_id,omitempty"`
	PersonID     string            `json:"person_id,omitempty"`
	EnrollmentID string            `json:"enrollment_id,omitempty"`
	CredentialID string            `json:"credential_id,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// AggregateType is the outbox aggregate the event belongs to.
func (e Event) AggregateType() string {
	switch e.Type {
	case EventEnrollmentUpdated:
		return "enrollment"
	default:
		return "credential"
	}
}

// AggregateID identifies the row the event describes.
func (e Event) AggregateID() string {
	if e.AggregateType() == "enrollment" || e.CredentialID == "" {
		return e.EnrollmentID
	}
	return e.CredentialID
}
