package payout

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/money"
)

// Status is the payout lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid reports whether the status is a known state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// transitions is the complete legal transition table. Anything absent is an
// illegal transition.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Event types emitted by payout transitions.
const (
	EventTypeCreated           = "PayoutCreated"
	EventTypeProcessingStarted = "PayoutProcessingStarted"
	EventTypeCompleted         = "PayoutCompleted"
	EventTypeFailed            = "PayoutFailed"
	EventTypeRetryScheduled    = "PayoutRetryScheduled"
	EventTypeCancelled         = "PayoutCancelled"
)

// Deterministic event ids per transition, so retried transitions dedup in
// the event log instead of appending twice.
func CreatedEventID(key string) string    { return "payout.created:" + key }
func ProcessingEventID(key string) string { return "payout.processing:" + key }
func CompletedEventID(key string) string  { return "payout.completed:" + key }
func CancelledEventID(key string) string  { return "payout.cancelled:" + key }

// FailureEventID carries the retry count: each failed attempt is its own
// event, while a replay of the same attempt dedups.
func FailureEventID(key string, retryCount int) string {
	return fmt.Sprintf("payout.failed:%s:%d", key, retryCount)
}

// LedgerTransactionID derives the deterministic ledger transaction id for a
// completed payout.
func LedgerTransactionID(key string) string { return "payout_" + key }

// MaxIdempotencyKeyLen bounds the caller-supplied idempotency key.
const MaxIdempotencyKeyLen = 128

// Payout is one outbound payment request, keyed by the caller's idempotency
// key. Amount, currency and recipient fields are immutable after intake;
// only status, retry bookkeeping and linkage fields change, and only under
// the row lock.
type Payout struct {
	ID                  uuid.UUID
	IdempotencyKey      string
	Amount              money.Amount
	RecipientAccount    string
	RecipientName       string
	Description         string
	Metadata            map[string]interface{}
	Status              Status
	RetryCount          int
	ErrorMessage        string
	ExternalPayoutID    string
	ExternalReference   string
	LinkedTransactionID string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProcessedAt         *time.Time
}

// Matches reports whether the request carries the same immutable fields as
// this payout. Used for idempotent intake: a match replays, a mismatch is an
// idempotency conflict. Metadata is advisory and excluded from the
// comparison; a replay with different metadata returns the stored payout
// unchanged.
func (p *Payout) Matches(req *Request) bool {
	return p.Amount.Equal(req.Amount) &&
		p.RecipientAccount == req.RecipientAccount &&
		p.RecipientName == req.RecipientName &&
		p.Description == req.Description
}

// Request is the intake payload for a new payout.
type Request struct {
	IdempotencyKey   string
	Amount           money.Amount
	RecipientAccount string
	RecipientName    string
	Description      string
	Metadata         map[string]interface{}
}

// Validate checks the intake invariants.
func (r *Request) Validate() error {
	if r.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if len(r.IdempotencyKey) > MaxIdempotencyKeyLen {
		return ErrIdempotencyKeyTooLong
	}
	if !r.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if r.RecipientAccount == "" {
		return ErrMissingRecipient
	}
	if r.RecipientName == "" {
		return ErrMissingRecipientName
	}
	return nil
}

// Page is one page of a cursor iteration over payouts, ordered by
// (created_at, id) descending.
type Page struct {
	Payouts    []*Payout
	NextCursor *Cursor
}

// Cursor is an opaque position in the (created_at, id) ordering.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}
