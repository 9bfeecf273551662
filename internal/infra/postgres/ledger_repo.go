package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/pkg/money"
)

const pgUniqueViolation = "23505"

// LedgerRepository implements the ledger repository interface using PostgreSQL
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Account operations

// CreateAccount creates a new account in the database
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, code, name, type, normal_side, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		account.ID,
		account.Code,
		account.Name,
		string(account.Type),
		string(account.NormalSide),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("account %s: %w", account.Code, ledger.ErrDuplicateAccount)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetOrCreateAccount atomically inserts an account or returns the existing
// one by code. Uses INSERT...ON CONFLICT (code) DO NOTHING to avoid race
// conditions.
func (r *LedgerRepository) GetOrCreateAccount(ctx context.Context, account *ledger.Account) (*ledger.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}

	insertQuery := `
		INSERT INTO accounts (id, code, name, type, normal_side, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, insertQuery,
		account.ID,
		account.Code,
		account.Name,
		string(account.Type),
		string(account.NormalSide),
		account.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	// Always SELECT to get the canonical row (ours or existing)
	return r.GetAccountByCode(ctx, account.Code)
}

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT id, code, name, type, normal_side, created_at
		FROM accounts
		WHERE id = $1
	`

	q := getQueryer(ctx, r.pool)
	return scanAccount(q.QueryRow(ctx, query, id))
}

// GetAccountByCode retrieves an account by its code
func (r *LedgerRepository) GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error) {
	query := `
		SELECT id, code, name, type, normal_side, created_at
		FROM accounts
		WHERE code = $1
	`

	q := getQueryer(ctx, r.pool)
	return scanAccount(q.QueryRow(ctx, query, code))
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var account ledger.Account
	err := row.Scan(
		&account.ID,
		&account.Code,
		&account.Name,
		&account.Type,
		&account.NormalSide,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// Transaction operations

// CreateTransaction inserts a transaction with its two entries. Insert-only:
// there are no update or delete statements for these tables anywhere.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	txQuery := `
		INSERT INTO ledger_transactions (id, description, created_at)
		VALUES ($1, $2, $3)
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, txQuery, tx.ID, tx.Description, tx.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrDuplicateTransaction)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	entryQuery := `
		INSERT INTO ledger_entries (id, transaction_id, account_id, side, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, entry := range tx.Entries {
		_, err := q.Exec(ctx, entryQuery,
			entry.ID,
			entry.TransactionID,
			entry.AccountID,
			string(entry.Side),
			entry.Amount.String(),
			entry.Amount.Currency(),
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return nil
}

// GetTransaction retrieves a transaction by ID with its entries
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `
		SELECT id, description, created_at
		FROM ledger_transactions
		WHERE id = $1
	`

	q := getQueryer(ctx, r.pool)

	var tx ledger.Transaction
	err := q.QueryRow(ctx, query, id).Scan(&tx.ID, &tx.Description, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	entriesQuery := `
		SELECT id, transaction_id, account_id, side, amount::text, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY side ASC
	`

	rows, err := q.Query(ctx, entriesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		tx.Entries = append(tx.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return &tx, nil
}

// ListEntriesByAccount pages an account's entries ordered by (created_at, id).
func (r *LedgerRepository) ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, cursor *ledger.EntryCursor, limit int) (*ledger.EntryPage, error) {
	query := `
		SELECT id, transaction_id, account_id, side, amount::text, currency, created_at
		FROM ledger_entries
		WHERE account_id = $1
	`
	args := []any{accountID}

	if cursor != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT %d`, limit+1)

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	page := &ledger.EntryPage{}
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		page.NextCursor = &ledger.EntryCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	page.Entries = entries
	return page, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		entry     ledger.Entry
		amountStr string
		currency  string
	)
	err := row.Scan(
		&entry.ID,
		&entry.TransactionID,
		&entry.AccountID,
		&entry.Side,
		&amountStr,
		&currency,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry.Amount, err = money.Parse(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry amount %q: %w", amountStr, err)
	}
	return &entry, nil
}

// CalculateBalanceFromEntries computes the balance with a single aggregation
// query instead of loading entries into memory.
func (r *LedgerRepository) CalculateBalanceFromEntries(ctx context.Context, accountID uuid.UUID) (money.Amount, money.Amount, error) {
	account, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return money.Amount{}, money.Amount{}, err
	}

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN side = 'DEBIT' THEN amount ELSE -amount END), 0)::text,
			COALESCE(MIN(currency), $2)
		FROM ledger_entries
		WHERE account_id = $1
	`

	var rawStr, currency string
	q := getQueryer(ctx, r.pool)
	if err := q.QueryRow(ctx, query, accountID, money.DefaultCurrency).Scan(&rawStr, &currency); err != nil {
		return money.Amount{}, money.Amount{}, fmt.Errorf("failed to calculate balance: %w", err)
	}

	raw, err := money.Parse(rawStr, currency)
	if err != nil {
		return money.Amount{}, money.Amount{}, fmt.Errorf("failed to parse calculated balance %q: %w", rawStr, err)
	}

	signed := raw
	if account.NormalSide == ledger.Credit {
		signed = raw.Neg()
	}
	return signed, raw, nil
}
