package readmodel

import (
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/money"
)

// AccountBalance is the denormalized balance of one ledger account.
// Balance is signed by the account's normal side (presentation-correct);
// DebitMinusCredit is the raw audit sum. AsOfSequence is the event sequence
// number of the last ledger transaction folded in. Rebuildable from entries.
type AccountBalance struct {
	AccountID        uuid.UUID
	Balance          money.Amount
	DebitMinusCredit money.Amount
	AsOfSequence     int64
	UpdatedAt        time.Time
}

// PayoutSummary is the denormalized payout row for reporting queries.
type PayoutSummary struct {
	PayoutID         uuid.UUID
	IdempotencyKey   string
	Amount           money.Amount
	RecipientAccount string
	Status           string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	UpdatedAt        time.Time
}

// TransactionSummary is the denormalized row for one balanced ledger
// transaction: which account was debited, which credited, and by how much.
type TransactionSummary struct {
	TransactionID string
	DebitAccount  string
	CreditAccount string
	Amount        money.Amount
	CreatedAt     time.Time
}

// AccountDelta is a signed balance change for one account, computed by the
// ledger core from an entry and the account's normal side.
type AccountDelta struct {
	AccountID uuid.UUID
	// Signed is positive when the entry falls on the account's normal side.
	Signed money.Amount
	// Raw is debit-minus-credit signed, kept for audit.
	Raw money.Amount
}
