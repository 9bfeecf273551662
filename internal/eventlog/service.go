package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/logger"
)

// Service appends to and reads from the ordered event log.
//
// Append MUST be called within an active database transaction: the sequence
// number and the event row commit (or roll back) together with the state
// change they describe. There is no outbox and no eventual consistency.
type Service struct {
	repo      Repository
	allocator SequenceAllocator
	logger    *logger.Logger
}

// NewService creates a new event log service
func NewService(repo Repository, allocator SequenceAllocator, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		logger:    log.WithField("component", "eventlog"),
	}
}

// Append records an event with the next sequence number.
//
// Idempotent on event id: if the id was already committed, the existing
// event is returned and nothing is written; the existence check runs before
// sequence allocation so the dedup path does not consume a number. If two
// concurrent transactions race on the same id, the loser fails with
// ErrDuplicateEventID at insert; its enclosing atomic unit rolls back (the
// allocated number with it) and a retry takes the dedup path.
func (s *Service) Append(ctx context.Context, eventID, aggregateType, aggregateID, eventType string, payload map[string]interface{}) (*Event, error) {
	existing, err := s.repo.GetByEventID(ctx, eventID)
	if err == nil {
		s.logger.Debug("event already recorded", "event_id", eventID, "sequence", existing.SequenceNumber)
		return existing, nil
	}
	if !errors.Is(err, ErrEventNotFound) {
		return nil, fmt.Errorf("failed to check event id: %w", err)
	}

	seq, err := s.allocator.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	event := &Event{
		ID:             uuid.New(),
		EventID:        eventID,
		SequenceNumber: seq,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		EventType:      eventType,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return event, nil
}

// Get returns the event with the given deterministic event id.
func (s *Service) Get(ctx context.Context, eventID string) (*Event, error) {
	return s.repo.GetByEventID(ctx, eventID)
}

// ReadSince returns events strictly after the given sequence number, in
// ascending sequence order.
func (s *Service) ReadSince(ctx context.Context, since int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListSince(ctx, since, limit)
}

// ReadAggregateHistory returns the ordered history of one aggregate.
func (s *Service) ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]*Event, error) {
	return s.repo.ListAggregate(ctx, aggregateType, aggregateID)
}
