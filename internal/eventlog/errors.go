package eventlog

import "errors"

var (
	ErrEmptyEventID     = errors.New("event id cannot be empty")
	ErrEmptyEventType   = errors.New("event type cannot be empty")
	ErrMissingAggregate = errors.New("aggregate type and id are required")
	ErrDuplicateEventID = errors.New("event id already exists")
	ErrEventNotFound    = errors.New("event not found")
	ErrNoActiveTx       = errors.New("event append requires an active transaction")
)
