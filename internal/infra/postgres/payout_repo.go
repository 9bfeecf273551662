package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/pkg/money"
)

// PayoutRepository implements the payout repository using PostgreSQL
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository creates a new PostgreSQL payout repository
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

const payoutColumns = `
	id, idempotency_key, amount::text, currency, recipient_account, recipient_name,
	description, metadata, status, retry_count, error_message, external_payout_id,
	external_reference, linked_transaction_id, created_at, updated_at, processed_at
`

// Insert creates a new payout row.
func (r *PayoutRepository) Insert(ctx context.Context, p *payout.Payout) error {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO payouts (
			id, idempotency_key, amount, currency, recipient_account, recipient_name,
			description, metadata, status, retry_count, error_message, external_payout_id,
			external_reference, linked_transaction_id, created_at, updated_at, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	q := getQueryer(ctx, r.pool)
	_, err = q.Exec(ctx, query,
		p.ID,
		p.IdempotencyKey,
		p.Amount.String(),
		p.Amount.Currency(),
		p.RecipientAccount,
		p.RecipientName,
		p.Description,
		metadataJSON,
		string(p.Status),
		p.RetryCount,
		p.ErrorMessage,
		p.ExternalPayoutID,
		p.ExternalReference,
		p.LinkedTransactionID,
		p.CreatedAt,
		p.UpdatedAt,
		p.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("payout %s: %w", p.IdempotencyKey, payout.ErrIdempotencyConflict)
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	return nil
}

// Update writes the mutable fields of a payout row. The immutable intake
// fields are deliberately absent from the statement.
func (r *PayoutRepository) Update(ctx context.Context, p *payout.Payout) error {
	query := `
		UPDATE payouts
		SET status = $2,
			retry_count = $3,
			error_message = $4,
			external_payout_id = $5,
			external_reference = $6,
			linked_transaction_id = $7,
			updated_at = $8,
			processed_at = $9
		WHERE id = $1
	`

	q := getQueryer(ctx, r.pool)
	tag, err := q.Exec(ctx, query,
		p.ID,
		string(p.Status),
		p.RetryCount,
		p.ErrorMessage,
		p.ExternalPayoutID,
		p.ExternalReference,
		p.LinkedTransactionID,
		p.UpdatedAt,
		p.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payout.ErrPayoutNotFound
	}
	return nil
}

// GetByID retrieves a payout by id
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	q := getQueryer(ctx, r.pool)
	return scanPayout(q.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a payout by id and locks its row for the
// duration of the transaction.
func (r *PayoutRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR UPDATE`
	q := getQueryer(ctx, r.pool)
	return scanPayout(q.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey retrieves a payout by its idempotency key
func (r *PayoutRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE idempotency_key = $1`
	q := getQueryer(ctx, r.pool)
	return scanPayout(q.QueryRow(ctx, query, key))
}

// GetByIdempotencyKeyForUpdate retrieves a payout by key and locks its row.
// Concurrent intakes with the same key serialize here.
func (r *PayoutRepository) GetByIdempotencyKeyForUpdate(ctx context.Context, key string) (*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE idempotency_key = $1 FOR UPDATE`
	q := getQueryer(ctx, r.pool)
	return scanPayout(q.QueryRow(ctx, query, key))
}

// List pages payouts ordered by (created_at, id) descending.
func (r *PayoutRepository) List(ctx context.Context, cursor *payout.Cursor, limit int) (*payout.Page, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts`
	args := []any{}

	if cursor != nil {
		query += ` WHERE (created_at, id) < ($1, $2)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*payout.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payouts: %w", err)
	}

	page := &payout.Page{}
	if len(payouts) > limit {
		payouts = payouts[:limit]
		last := payouts[len(payouts)-1]
		page.NextCursor = &payout.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	page.Payouts = payouts
	return page, nil
}

// ListStalled returns payouts that should be (re)enqueued: Pending rows, and
// Processing rows whose last update is older than staleAge.
func (r *PayoutRepository) ListStalled(ctx context.Context, staleAge time.Duration, limit int) ([]*payout.Payout, error) {
	query := `SELECT ` + payoutColumns + `
		FROM payouts
		WHERE status = $1
		   OR (status = $2 AND updated_at < $3)
		ORDER BY created_at ASC
		LIMIT $4
	`

	cutoff := time.Now().UTC().Add(-staleAge)
	q := getQueryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, string(payout.StatusPending), string(payout.StatusProcessing), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stalled payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*payout.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stalled payouts: %w", err)
	}
	return payouts, nil
}

func scanPayout(row pgx.Row) (*payout.Payout, error) {
	var (
		p            payout.Payout
		amountStr    string
		currency     string
		metadataJSON []byte
	)
	err := row.Scan(
		&p.ID,
		&p.IdempotencyKey,
		&amountStr,
		&currency,
		&p.RecipientAccount,
		&p.RecipientName,
		&p.Description,
		&metadataJSON,
		&p.Status,
		&p.RetryCount,
		&p.ErrorMessage,
		&p.ExternalPayoutID,
		&p.ExternalReference,
		&p.LinkedTransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to scan payout: %w", err)
	}

	p.Amount, err = money.Parse(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout amount %q: %w", amountStr, err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &p, nil
}
