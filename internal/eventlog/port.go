package eventlog

import "context"

// Repository defines the interface for event log persistence.
// Writes join the database transaction carried in the context.
type Repository interface {
	// Insert persists an event. Returns ErrDuplicateEventID if the event id
	// is already present, ErrNoActiveTx when called outside a transaction.
	Insert(ctx context.Context, event *Event) error

	// GetByEventID returns the event with the given producer event id, or
	// ErrEventNotFound.
	GetByEventID(ctx context.Context, eventID string) (*Event, error)

	// ListSince returns events with sequence_number > since, ordered by
	// ascending sequence number, at most limit rows.
	ListSince(ctx context.Context, since int64, limit int) ([]*Event, error)

	// ListAggregate returns the full ordered history of one aggregate.
	ListAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*Event, error)
}

// SequenceAllocator hands out the next global sequence number. The default
// allocator locks a counter row for the duration of the enclosing
// transaction, which keeps committed numbering dense; the serial allocator
// draws from a native database sequence and may skip on rollback.
type SequenceAllocator interface {
	Next(ctx context.Context) (int64, error)
}
