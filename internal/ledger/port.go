package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/money"
)

// Repository defines the interface for ledger persistence operations.
// Write methods join the database transaction carried in the context.
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetOrCreateAccount(ctx context.Context, account *Account) (*Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)

	// Transaction operations. Transactions and entries are insert-only;
	// no update or delete methods exist.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// Entry operations (read-only - entries are immutable)
	ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, cursor *EntryCursor, limit int) (*EntryPage, error)

	// CalculateBalanceFromEntries computes the account balance with a single
	// aggregation query: signed by the account's normal side, plus the raw
	// debit-minus-credit sum for audit. Entries are never loaded into memory.
	CalculateBalanceFromEntries(ctx context.Context, accountID uuid.UUID) (signed, raw money.Amount, err error)
}

// Transactor runs a function within one atomic unit. If the context already
// carries a transaction the function joins it; otherwise a new transaction
// is opened and committed (or rolled back on error).
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
