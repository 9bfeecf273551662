package readmodel

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/pkg/logger"
	"github.com/payrail/payrail/pkg/money"
)

type fakeRepo struct {
	balances        map[uuid.UUID]*AccountBalance
	txSummaries     map[string]*TransactionSummary
	payoutSummaries map[uuid.UUID]*PayoutSummary
	rebuilds        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		balances:        make(map[uuid.UUID]*AccountBalance),
		txSummaries:     make(map[string]*TransactionSummary),
		payoutSummaries: make(map[uuid.UUID]*PayoutSummary),
	}
}

func (r *fakeRepo) GetAccountBalance(_ context.Context, accountID uuid.UUID) (*AccountBalance, error) {
	if b, ok := r.balances[accountID]; ok {
		return b, nil
	}
	return &AccountBalance{AccountID: accountID}, nil
}

func (r *fakeRepo) GetAccountBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error) {
	return r.GetAccountBalance(ctx, accountID)
}

func (r *fakeRepo) UpsertAccountBalance(_ context.Context, balance *AccountBalance) error {
	copied := *balance
	r.balances[balance.AccountID] = &copied
	return nil
}

func (r *fakeRepo) ListAccountBalances(_ context.Context) ([]*AccountBalance, error) {
	out := make([]*AccountBalance, 0, len(r.balances))
	for _, b := range r.balances {
		out = append(out, b)
	}
	return out, nil
}

func (r *fakeRepo) InsertTransactionSummary(_ context.Context, summary *TransactionSummary) error {
	r.txSummaries[summary.TransactionID] = summary
	return nil
}

func (r *fakeRepo) ListTransactionSummaries(_ context.Context) ([]*TransactionSummary, error) {
	out := make([]*TransactionSummary, 0, len(r.txSummaries))
	for _, s := range r.txSummaries {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepo) UpsertPayoutSummary(_ context.Context, summary *PayoutSummary) error {
	copied := *summary
	r.payoutSummaries[summary.PayoutID] = &copied
	return nil
}

func (r *fakeRepo) GetPayoutSummary(_ context.Context, payoutID uuid.UUID) (*PayoutSummary, error) {
	return r.payoutSummaries[payoutID], nil
}

func (r *fakeRepo) ListPayoutSummaries(_ context.Context) ([]*PayoutSummary, error) {
	out := make([]*PayoutSummary, 0, len(r.payoutSummaries))
	for _, s := range r.payoutSummaries {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepo) Rebuild(context.Context) error {
	r.rebuilds++
	return nil
}

func newTestProjector() (*Projector, *fakeRepo) {
	repo := newFakeRepo()
	return NewProjector(repo, logger.New("test", io.Discard)), repo
}

func TestApplyEntryDeltasFoldsBalances(t *testing.T) {
	p, repo := newTestProjector()
	ctx := context.Background()
	accountID := uuid.New()

	deltas := []AccountDelta{{
		AccountID: accountID,
		Signed:    money.MustParse("100.00", "USD"),
		Raw:       money.MustParse("100.00", "USD"),
	}}
	require.NoError(t, p.ApplyEntryDeltas(ctx, deltas, 7))

	balance := repo.balances[accountID]
	require.NotNil(t, balance)
	assert.Equal(t, "100.00", balance.Balance.String())
	assert.Equal(t, int64(7), balance.AsOfSequence)

	// Second delta decreases the balance and advances the watermark.
	deltas[0].Signed = money.MustParse("-30.00", "USD")
	deltas[0].Raw = money.MustParse("-30.00", "USD")
	require.NoError(t, p.ApplyEntryDeltas(ctx, deltas, 9))

	balance = repo.balances[accountID]
	assert.Equal(t, "70.00", balance.Balance.String())
	assert.Equal(t, int64(9), balance.AsOfSequence)
}

func TestApplyEntryDeltasAdoptsCurrencyOnFirstWrite(t *testing.T) {
	p, repo := newTestProjector()
	ctx := context.Background()
	accountID := uuid.New()

	// A fresh row carries zero-value Amounts with no currency; the first
	// delta must not fail the currency check.
	deltas := []AccountDelta{{
		AccountID: accountID,
		Signed:    money.MustParse("42.00", "EUR"),
		Raw:       money.MustParse("-42.00", "EUR"),
	}}
	require.NoError(t, p.ApplyEntryDeltas(ctx, deltas, 1))

	balance := repo.balances[accountID]
	assert.Equal(t, "EUR", balance.Balance.Currency())
	assert.Equal(t, "42.00", balance.Balance.String())
	assert.Equal(t, "-42.00", balance.DebitMinusCredit.String())
}

func TestApplyPayoutChange(t *testing.T) {
	p, repo := newTestProjector()
	ctx := context.Background()

	summary := &PayoutSummary{
		PayoutID:       uuid.New(),
		IdempotencyKey: "k1",
		Amount:         money.MustParse("100.00", "USD"),
		Status:         "PENDING",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, p.ApplyPayoutChange(ctx, summary))

	summary.Status = "COMPLETED"
	require.NoError(t, p.ApplyPayoutChange(ctx, summary))

	stored := repo.payoutSummaries[summary.PayoutID]
	require.NotNil(t, stored)
	assert.Equal(t, "COMPLETED", stored.Status)
}

func TestRebuildDelegates(t *testing.T) {
	p, repo := newTestProjector()
	require.NoError(t, p.Rebuild(context.Background()))
	assert.Equal(t, 1, repo.rebuilds)
}
