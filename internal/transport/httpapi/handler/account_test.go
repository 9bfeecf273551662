package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/pkg/money"
)

type stubLedgerService struct {
	account    *ledger.Account
	accountErr error

	balance    money.Amount
	balanceErr error

	tx    *ledger.Transaction
	txErr error

	reconcileErr error

	lastRefresh bool
}

func (s *stubLedgerService) GetAccount(context.Context, string) (*ledger.Account, error) {
	return s.account, s.accountErr
}

func (s *stubLedgerService) GetAccountBalance(_ context.Context, _ uuid.UUID, forceRefresh bool) (money.Amount, error) {
	s.lastRefresh = forceRefresh
	return s.balance, s.balanceErr
}

func (s *stubLedgerService) GetTransaction(context.Context, string) (*ledger.Transaction, error) {
	return s.tx, s.txErr
}

func (s *stubLedgerService) ReconcileBalance(context.Context, uuid.UUID) error {
	return s.reconcileErr
}

func cashAccount() *ledger.Account {
	return &ledger.Account{
		ID:         uuid.New(),
		Code:       ledger.CashAccountCode,
		Name:       "Operating cash",
		Type:       ledger.AccountTypeAsset,
		NormalSide: ledger.Debit,
	}
}

func TestGetBalance(t *testing.T) {
	svc := &stubLedgerService{account: cashAccount(), balance: money.MustParse("250.00", "USD")}
	h := NewAccountHandler(svc)

	rec := httptest.NewRecorder()
	h.GetBalance(rec, chiRequest(http.MethodGet, "/api/accounts/CASH_001/balance", "code", "CASH_001"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.lastRefresh)

	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CASH_001", resp.AccountCode)
	assert.Equal(t, "250.00", resp.Balance)
	assert.Equal(t, "USD", resp.Currency)
}

func TestGetBalanceDefaultsCurrencyForEmptyAccount(t *testing.T) {
	// No entries posted yet: the service returns a zero-value amount with
	// no currency.
	svc := &stubLedgerService{account: cashAccount(), balance: money.Amount{}}
	h := NewAccountHandler(svc)

	rec := httptest.NewRecorder()
	h.GetBalance(rec, chiRequest(http.MethodGet, "/api/accounts/CASH_001/balance", "code", "CASH_001"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0.00", resp.Balance)
	assert.Equal(t, money.DefaultCurrency, resp.Currency)
}

func TestGetBalanceForcesRefresh(t *testing.T) {
	svc := &stubLedgerService{account: cashAccount(), balance: money.MustParse("250.00", "USD")}
	h := NewAccountHandler(svc)

	rec := httptest.NewRecorder()
	h.GetBalance(rec, chiRequest(http.MethodGet, "/api/accounts/CASH_001/balance?refresh=true", "code", "CASH_001"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastRefresh)
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	h := NewAccountHandler(&stubLedgerService{accountErr: ledger.ErrAccountNotFound})

	rec := httptest.NewRecorder()
	h.GetBalance(rec, chiRequest(http.MethodGet, "/api/accounts/NOPE/balance", "code", "NOPE"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcileBalance(t *testing.T) {
	h := NewAccountHandler(&stubLedgerService{account: cashAccount()})

	rec := httptest.NewRecorder()
	h.ReconcileBalance(rec, chiRequest(http.MethodPost, "/api/accounts/CASH_001/reconcile", "code", "CASH_001"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReconcileBalanceMismatch(t *testing.T) {
	h := NewAccountHandler(&stubLedgerService{
		account:      cashAccount(),
		reconcileErr: errors.New("balance mismatch for CASH_001: projected=10.00, calculated=20.00"),
	})

	rec := httptest.NewRecorder()
	h.ReconcileBalance(rec, chiRequest(http.MethodPost, "/api/accounts/CASH_001/reconcile", "code", "CASH_001"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	amount := money.MustParse("100.00", "USD")
	tx := &ledger.Transaction{
		ID:          "payout_k1",
		Description: "Payout k1 to Jane Doe",
		CreatedAt:   now,
		Entries: []*ledger.Entry{
			{ID: uuid.New(), TransactionID: "payout_k1", AccountID: uuid.New(), Side: ledger.Debit, Amount: amount, CreatedAt: now},
			{ID: uuid.New(), TransactionID: "payout_k1", AccountID: uuid.New(), Side: ledger.Credit, Amount: amount, CreatedAt: now},
		},
	}
	h := NewAccountHandler(&stubLedgerService{tx: tx})

	rec := httptest.NewRecorder()
	h.GetTransaction(rec, chiRequest(http.MethodGet, "/api/transactions/payout_k1", "id", "payout_k1"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "payout_k1", resp.ID)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "DEBIT", resp.Entries[0].Side)
	assert.Equal(t, "100.00", resp.Entries[0].Amount)
}

func TestGetTransactionNotFound(t *testing.T) {
	h := NewAccountHandler(&stubLedgerService{txErr: ledger.ErrTransactionNotFound})

	rec := httptest.NewRecorder()
	h.GetTransaction(rec, chiRequest(http.MethodGet, "/api/transactions/nope", "id", "nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
