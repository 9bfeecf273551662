package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate types recorded in the log.
const (
	AggregatePayout      = "payout"
	AggregateTransaction = "transaction"
)

// Event represents an immutable event in the ordered log.
// The event id is a producer-chosen deterministic string used for
// deduplication; the sequence number is assigned at commit time and orders
// events globally. IMMUTABLE: events are never updated or deleted.
type Event struct {
	ID             uuid.UUID
	EventID        string
	SequenceNumber int64
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        map[string]interface{}
	CreatedAt      time.Time
}

// Validate validates the event
func (e *Event) Validate() error {
	if e.EventID == "" {
		return ErrEmptyEventID
	}
	if e.AggregateType == "" || e.AggregateID == "" {
		return ErrMissingAggregate
	}
	if e.EventType == "" {
		return ErrEmptyEventType
	}
	return nil
}
