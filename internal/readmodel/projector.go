package readmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/logger"
	"github.com/payrail/payrail/pkg/money"
)

// Projector maintains the denormalized read models. Every Apply* method must
// run inside the same database transaction as the source write it mirrors:
// a projection failure aborts the whole atomic unit. Financial correctness
// outranks write availability.
type Projector struct {
	repo   Repository
	logger *logger.Logger
}

// NewProjector creates a new read-model projector
func NewProjector(repo Repository, log *logger.Logger) *Projector {
	return &Projector{
		repo:   repo,
		logger: log.WithField("component", "projector"),
	}
}

// ApplyEntryDeltas folds signed per-account balance changes into the
// AccountBalance rows. The balance row is locked for the duration of the
// transaction; asOfSequence records the event sequence of the ledger
// transaction being applied.
func (p *Projector) ApplyEntryDeltas(ctx context.Context, deltas []AccountDelta, asOfSequence int64) error {
	for _, d := range deltas {
		current, err := p.repo.GetAccountBalanceForUpdate(ctx, d.AccountID)
		if err != nil {
			return fmt.Errorf("failed to lock balance row for %s: %w", d.AccountID, err)
		}

		// A fresh balance row has no currency yet; adopt the delta's.
		balance := current.Balance
		if balance.Currency() == "" {
			balance = money.Zero(d.Signed.Currency())
		}
		raw := current.DebitMinusCredit
		if raw.Currency() == "" {
			raw = money.Zero(d.Raw.Currency())
		}

		newBalance, err := balance.Add(d.Signed)
		if err != nil {
			return fmt.Errorf("failed to apply signed delta: %w", err)
		}
		newRaw, err := raw.Add(d.Raw)
		if err != nil {
			return fmt.Errorf("failed to apply raw delta: %w", err)
		}

		updated := &AccountBalance{
			AccountID:        d.AccountID,
			Balance:          newBalance,
			DebitMinusCredit: newRaw,
			AsOfSequence:     asOfSequence,
			UpdatedAt:        time.Now().UTC(),
		}
		if err := p.repo.UpsertAccountBalance(ctx, updated); err != nil {
			return fmt.Errorf("failed to upsert balance for %s: %w", d.AccountID, err)
		}
	}

	return nil
}

// RecordTransactionSummary inserts the summary row for a new ledger
// transaction.
func (p *Projector) RecordTransactionSummary(ctx context.Context, summary *TransactionSummary) error {
	if err := p.repo.InsertTransactionSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to insert transaction summary: %w", err)
	}
	return nil
}

// ApplyPayoutChange upserts the payout summary row after a payout state
// change.
func (p *Projector) ApplyPayoutChange(ctx context.Context, summary *PayoutSummary) error {
	if err := p.repo.UpsertPayoutSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to upsert payout summary: %w", err)
	}
	return nil
}

// GetAccountBalance returns the projected balance row for an account.
// A missing row reads as zero.
func (p *Projector) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error) {
	return p.repo.GetAccountBalance(ctx, accountID)
}

// Rebuild recomputes all read-model rows from ledger entries and payout rows
// only. Incremental projection and rebuild must agree row for row; the
// integration suite asserts this equivalence.
func (p *Projector) Rebuild(ctx context.Context) error {
	start := time.Now()
	if err := p.repo.Rebuild(ctx); err != nil {
		return fmt.Errorf("read model rebuild failed: %w", err)
	}
	p.logger.Info("read models rebuilt", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
