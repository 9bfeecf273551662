package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payrail/payrail/internal/eventlog"
)

// CounterAllocator is the default, gapless sequence source: a single counter
// row incremented inside the caller's transaction. The row lock is held
// until commit, so an aborted transaction rolls its number back and the
// committed sequence stays dense (1..N). The lock serializes concurrent
// appenders; its critical section is one row update.
type CounterAllocator struct {
	pool *pgxpool.Pool
}

// NewCounterAllocator creates a gapless counter-row allocator
func NewCounterAllocator(pool *pgxpool.Pool) *CounterAllocator {
	return &CounterAllocator{pool: pool}
}

// Next allocates the next sequence number. Must run inside a transaction.
func (a *CounterAllocator) Next(ctx context.Context) (int64, error) {
	if !HasTx(ctx) {
		return 0, eventlog.ErrNoActiveTx
	}

	query := `
		UPDATE event_sequence
		SET value = value + 1
		WHERE id = 1
		RETURNING value
	`

	var seq int64
	q := getQueryer(ctx, a.pool)
	if err := q.QueryRow(ctx, query).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to advance event sequence: %w", err)
	}
	return seq, nil
}

// SerialAllocator draws from a native PostgreSQL sequence. No lock is held
// across the transaction, so concurrent appenders do not serialize, but an
// aborted transaction leaves a gap. Sequence numbers are strictly
// increasing, not dense. Opt-in via SEQUENCE_ALLOCATOR=serial.
type SerialAllocator struct {
	pool *pgxpool.Pool
}

// NewSerialAllocator creates a skip-tolerant native-sequence allocator
func NewSerialAllocator(pool *pgxpool.Pool) *SerialAllocator {
	return &SerialAllocator{pool: pool}
}

// Next allocates the next sequence number. Must run inside a transaction.
func (a *SerialAllocator) Next(ctx context.Context) (int64, error) {
	if !HasTx(ctx) {
		return 0, eventlog.ErrNoActiveTx
	}

	var seq int64
	q := getQueryer(ctx, a.pool)
	if err := q.QueryRow(ctx, `SELECT nextval('events_sequence_number_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to draw from event sequence: %w", err)
	}
	return seq, nil
}
