package payout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/eventlog"
)

// Repository defines payout persistence. Writes join the database
// transaction carried in the context; the ForUpdate variants take the row
// lock that serializes all transitions of one payout.
type Repository interface {
	Insert(ctx context.Context, p *Payout) error
	Update(ctx context.Context, p *Payout) error

	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payout, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payout, error)
	GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*Payout, error)

	List(ctx context.Context, cursor *Cursor, limit int) (*Page, error)

	// ListStalled returns payouts the dispatcher should pick up again:
	// Pending rows, plus Processing rows not touched for staleAge (a worker
	// died mid-flight).
	ListStalled(ctx context.Context, staleAge time.Duration, limit int) ([]*Payout, error)
}

// Publisher broadcasts committed events on the best-effort fan-out channel.
// Implementations must never fail the caller: a dropped broadcast is
// recovered by clients polling the event log.
type Publisher interface {
	PublishPayoutEvent(ctx context.Context, event *eventlog.Event)
	PublishTransactionEvent(ctx context.Context, event *eventlog.Event)
}

// Enqueuer submits background work units. Satisfied by worker.Dispatcher.
type Enqueuer interface {
	EnqueueProcess(payoutID uuid.UUID) error
}
