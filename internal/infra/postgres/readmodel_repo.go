package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payrail/payrail/internal/readmodel"
	"github.com/payrail/payrail/pkg/money"
)

// ReadModelRepository implements the read-model repository using PostgreSQL
type ReadModelRepository struct {
	pool *pgxpool.Pool
}

// NewReadModelRepository creates a new PostgreSQL read-model repository
func NewReadModelRepository(pool *pgxpool.Pool) *ReadModelRepository {
	return &ReadModelRepository{pool: pool}
}

// GetAccountBalance returns the balance row for an account. A missing row
// reads as zero.
func (r *ReadModelRepository) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*readmodel.AccountBalance, error) {
	query := `
		SELECT account_id, balance::text, debit_minus_credit::text, currency, as_of_sequence, updated_at
		FROM account_balances
		WHERE account_id = $1
	`

	q := getQueryer(ctx, r.pool)
	balance, err := scanAccountBalance(q.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &readmodel.AccountBalance{AccountID: accountID}, nil
		}
		return nil, err
	}
	return balance, nil
}

// GetAccountBalanceForUpdate locks the balance row for the duration of the
// transaction, inserting a zero row first if none exists so there is always
// a row to lock. Serializes concurrent balance updates per account.
func (r *ReadModelRepository) GetAccountBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (*readmodel.AccountBalance, error) {
	q := getQueryer(ctx, r.pool)

	insertQuery := `
		INSERT INTO account_balances (account_id, balance, debit_minus_credit, currency, as_of_sequence, updated_at)
		VALUES ($1, 0, 0, '', 0, NOW())
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := q.Exec(ctx, insertQuery, accountID); err != nil {
		return nil, fmt.Errorf("failed to seed balance row: %w", err)
	}

	query := `
		SELECT account_id, balance::text, debit_minus_credit::text, currency, as_of_sequence, updated_at
		FROM account_balances
		WHERE account_id = $1
		FOR UPDATE
	`
	return scanAccountBalance(q.QueryRow(ctx, query, accountID))
}

// UpsertAccountBalance writes a balance row.
func (r *ReadModelRepository) UpsertAccountBalance(ctx context.Context, balance *readmodel.AccountBalance) error {
	query := `
		INSERT INTO account_balances (account_id, balance, debit_minus_credit, currency, as_of_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			debit_minus_credit = EXCLUDED.debit_minus_credit,
			currency = EXCLUDED.currency,
			as_of_sequence = EXCLUDED.as_of_sequence,
			updated_at = EXCLUDED.updated_at
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		balance.AccountID,
		balance.Balance.String(),
		balance.DebitMinusCredit.String(),
		balance.Balance.Currency(),
		balance.AsOfSequence,
		balance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account balance: %w", err)
	}
	return nil
}

// ListAccountBalances returns all balance rows.
func (r *ReadModelRepository) ListAccountBalances(ctx context.Context) ([]*readmodel.AccountBalance, error) {
	query := `
		SELECT account_id, balance::text, debit_minus_credit::text, currency, as_of_sequence, updated_at
		FROM account_balances
		ORDER BY account_id
	`

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query account balances: %w", err)
	}
	defer rows.Close()

	var balances []*readmodel.AccountBalance
	for rows.Next() {
		balance, err := scanAccountBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account balances: %w", err)
	}
	return balances, nil
}

func scanAccountBalance(row pgx.Row) (*readmodel.AccountBalance, error) {
	var (
		balance            readmodel.AccountBalance
		balanceStr, rawStr string
		currency           string
	)
	err := row.Scan(
		&balance.AccountID,
		&balanceStr,
		&rawStr,
		&currency,
		&balance.AsOfSequence,
		&balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan account balance: %w", err)
	}

	// A seeded row has no currency yet; keep the zero value so the
	// projector adopts the first delta's currency.
	if currency == "" {
		return &balance, nil
	}

	balance.Balance, err = money.Parse(balanceStr, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	balance.DebitMinusCredit, err = money.Parse(rawStr, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse raw balance %q: %w", rawStr, err)
	}
	return &balance, nil
}

// InsertTransactionSummary records the summary row for a ledger transaction.
func (r *ReadModelRepository) InsertTransactionSummary(ctx context.Context, summary *readmodel.TransactionSummary) error {
	query := `
		INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		summary.TransactionID,
		summary.DebitAccount,
		summary.CreditAccount,
		summary.Amount.String(),
		summary.Amount.Currency(),
		summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction summary: %w", err)
	}
	return nil
}

// ListTransactionSummaries returns all transaction summary rows, newest first.
func (r *ReadModelRepository) ListTransactionSummaries(ctx context.Context) ([]*readmodel.TransactionSummary, error) {
	query := `
		SELECT transaction_id, debit_account, credit_account, amount::text, currency, created_at
		FROM ledger_transaction_summaries
		ORDER BY created_at DESC, transaction_id DESC
	`

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*readmodel.TransactionSummary
	for rows.Next() {
		var (
			s         readmodel.TransactionSummary
			amountStr string
			currency  string
		)
		if err := rows.Scan(&s.TransactionID, &s.DebitAccount, &s.CreditAccount, &amountStr, &currency, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction summary: %w", err)
		}
		s.Amount, err = money.Parse(amountStr, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to parse summary amount %q: %w", amountStr, err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction summaries: %w", err)
	}
	return summaries, nil
}

// UpsertPayoutSummary writes the payout summary row.
func (r *ReadModelRepository) UpsertPayoutSummary(ctx context.Context, summary *readmodel.PayoutSummary) error {
	query := `
		INSERT INTO payout_summaries (payout_id, idempotency_key, amount, currency, recipient_account, status, created_at, processed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payout_id) DO UPDATE SET
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at,
			updated_at = EXCLUDED.updated_at
	`

	q := getQueryer(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		summary.PayoutID,
		summary.IdempotencyKey,
		summary.Amount.String(),
		summary.Amount.Currency(),
		summary.RecipientAccount,
		summary.Status,
		summary.CreatedAt,
		summary.ProcessedAt,
		summary.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payout summary: %w", err)
	}
	return nil
}

// GetPayoutSummary returns one payout summary row.
func (r *ReadModelRepository) GetPayoutSummary(ctx context.Context, payoutID uuid.UUID) (*readmodel.PayoutSummary, error) {
	query := `
		SELECT payout_id, idempotency_key, amount::text, currency, recipient_account, status, created_at, processed_at, updated_at
		FROM payout_summaries
		WHERE payout_id = $1
	`

	q := getQueryer(ctx, r.pool)
	return scanPayoutSummary(q.QueryRow(ctx, query, payoutID))
}

// ListPayoutSummaries returns all payout summary rows, newest first.
func (r *ReadModelRepository) ListPayoutSummaries(ctx context.Context) ([]*readmodel.PayoutSummary, error) {
	query := `
		SELECT payout_id, idempotency_key, amount::text, currency, recipient_account, status, created_at, processed_at, updated_at
		FROM payout_summaries
		ORDER BY created_at DESC, payout_id DESC
	`

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query payout summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*readmodel.PayoutSummary
	for rows.Next() {
		summary, err := scanPayoutSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout summaries: %w", err)
	}
	return summaries, nil
}

func scanPayoutSummary(row pgx.Row) (*readmodel.PayoutSummary, error) {
	var (
		s         readmodel.PayoutSummary
		amountStr string
		currency  string
	)
	err := row.Scan(
		&s.PayoutID,
		&s.IdempotencyKey,
		&amountStr,
		&currency,
		&s.RecipientAccount,
		&s.Status,
		&s.CreatedAt,
		&s.ProcessedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan payout summary: %w", err)
	}

	s.Amount, err = money.Parse(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout amount %q: %w", amountStr, err)
	}
	return &s, nil
}

// Rebuild recomputes every read-model row from ledger entries and payout
// rows. Runs in the caller's transaction when one is present.
func (r *ReadModelRepository) Rebuild(ctx context.Context) error {
	q := getQueryer(ctx, r.pool)

	statements := []string{
		`DELETE FROM account_balances`,
		`
		INSERT INTO account_balances (account_id, balance, debit_minus_credit, currency, as_of_sequence, updated_at)
		SELECT
			e.account_id,
			SUM(CASE WHEN e.side = a.normal_side THEN e.amount ELSE -e.amount END),
			SUM(CASE WHEN e.side = 'DEBIT' THEN e.amount ELSE -e.amount END),
			MIN(e.currency),
			COALESCE((
				SELECT MAX(ev.sequence_number)
				FROM events ev
				JOIN ledger_entries e2 ON ev.aggregate_id = e2.transaction_id
				WHERE ev.aggregate_type = 'transaction' AND e2.account_id = e.account_id
			), 0),
			NOW()
		FROM ledger_entries e
		JOIN accounts a ON a.id = e.account_id
		GROUP BY e.account_id
		`,
		`DELETE FROM ledger_transaction_summaries`,
		`
		INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount, currency, created_at)
		SELECT
			t.id,
			MAX(CASE WHEN e.side = 'DEBIT' THEN a.code END),
			MAX(CASE WHEN e.side = 'CREDIT' THEN a.code END),
			MAX(CASE WHEN e.side = 'DEBIT' THEN e.amount END),
			MIN(e.currency),
			t.created_at
		FROM ledger_transactions t
		JOIN ledger_entries e ON e.transaction_id = t.id
		JOIN accounts a ON a.id = e.account_id
		GROUP BY t.id, t.created_at
		`,
		`DELETE FROM payout_summaries`,
		`
		INSERT INTO payout_summaries (payout_id, idempotency_key, amount, currency, recipient_account, status, created_at, processed_at, updated_at)
		SELECT id, idempotency_key, amount, currency, recipient_account, status, created_at, processed_at, updated_at
		FROM payouts
		`,
	}

	for _, stmt := range statements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild statement failed: %w", err)
		}
	}
	return nil
}
