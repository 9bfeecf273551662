package readmodel

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for read-model persistence.
// Writes join the database transaction carried in the context.
type Repository interface {
	// Balance rows
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error)
	GetAccountBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error)
	UpsertAccountBalance(ctx context.Context, balance *AccountBalance) error
	ListAccountBalances(ctx context.Context) ([]*AccountBalance, error)

	// Transaction summaries
	InsertTransactionSummary(ctx context.Context, summary *TransactionSummary) error
	ListTransactionSummaries(ctx context.Context) ([]*TransactionSummary, error)

	// Payout summaries
	UpsertPayoutSummary(ctx context.Context, summary *PayoutSummary) error
	GetPayoutSummary(ctx context.Context, payoutID uuid.UUID) (*PayoutSummary, error)
	ListPayoutSummaries(ctx context.Context) ([]*PayoutSummary, error)

	// Rebuild recomputes every read-model row from ledger entries and payout
	// rows alone. The result must be row-equal to incremental projection.
	Rebuild(ctx context.Context) error
}
