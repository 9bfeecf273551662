package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payrail/payrail/internal/eventlog"
)

// EventRepository implements the event log repository using PostgreSQL
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new PostgreSQL event repository
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert appends an event row. Must run inside the caller's transaction so
// the event commits together with the state change it describes.
func (r *EventRepository) Insert(ctx context.Context, event *eventlog.Event) error {
	if !HasTx(ctx) {
		return eventlog.ErrNoActiveTx
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	q := getQueryer(ctx, r.pool)
	_, err = q.Exec(ctx, query,
		event.ID,
		event.EventID,
		event.SequenceNumber,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		payloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("event %s: %w", event.EventID, eventlog.ErrDuplicateEventID)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// GetByEventID retrieves an event by its deterministic event id
func (r *EventRepository) GetByEventID(ctx context.Context, eventID string) (*eventlog.Event, error) {
	query := `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE event_id = $1
	`

	q := getQueryer(ctx, r.pool)
	return scanEvent(q.QueryRow(ctx, query, eventID))
}

// ListSince returns events with sequence_number strictly greater than since,
// in ascending sequence order.
func (r *EventRepository) ListSince(ctx context.Context, since int64, limit int) ([]*eventlog.Event, error) {
	query := `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE sequence_number > $1
		ORDER BY sequence_number ASC
		LIMIT $2
	`

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListAggregate returns the ordered event history of one aggregate.
func (r *EventRepository) ListAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*eventlog.Event, error) {
	query := `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY sequence_number ASC
	`

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*eventlog.Event, error) {
	var events []*eventlog.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (*eventlog.Event, error) {
	var (
		event       eventlog.Event
		payloadJSON []byte
	)
	err := row.Scan(
		&event.ID,
		&event.EventID,
		&event.SequenceNumber,
		&event.AggregateType,
		&event.AggregateID,
		&event.EventType,
		&payloadJSON,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eventlog.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &event, nil
}
