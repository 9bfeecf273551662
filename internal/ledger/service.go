package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/eventlog"
	"github.com/payrail/payrail/internal/readmodel"
	"github.com/payrail/payrail/pkg/logger"
	"github.com/payrail/payrail/pkg/money"
)

// EventTypeTransactionCreated is emitted for every committed ledger
// transaction, in the same atomic unit as the entries themselves.
const EventTypeTransactionCreated = "LedgerTransactionCreated"

// TransactionCreatedEventID derives the deterministic event id for a ledger
// transaction, so retried writers dedup instead of double-appending.
func TransactionCreatedEventID(transactionID string) string {
	return "ledger.transaction.created:" + transactionID
}

// Leg is one side of a balanced transaction: an account code and the amount
// posted to it.
type Leg struct {
	AccountCode string
	Amount      money.Amount
}

// CreateTransactionInput describes a balanced two-entry transaction.
type CreateTransactionInput struct {
	ID          string
	Description string
	Debit       Leg
	Credit      Leg
}

// Service is the ledger core: it creates balanced immutable transactions and
// serves balance queries. Every write carries its event append and its
// read-model projection in one atomic unit.
type Service struct {
	repo      Repository
	events    *eventlog.Service
	projector *readmodel.Projector
	tx        Transactor
	logger    *logger.Logger
}

// NewService creates a new ledger service
func NewService(repo Repository, events *eventlog.Service, projector *readmodel.Projector, tx Transactor, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		events:    events,
		projector: projector,
		tx:        tx,
		logger:    log.WithField("component", "ledger"),
	}
}

// EnsureSystemAccounts creates the two bootstrap accounts if absent:
// CASH_001 (Asset, debit-normal) and PAYOUT_LIABILITY_001 (Liability,
// credit-normal). Idempotent.
func (s *Service) EnsureSystemAccounts(ctx context.Context) error {
	accounts := []*Account{
		{
			ID:         uuid.New(),
			Code:       CashAccountCode,
			Name:       "Operating cash",
			Type:       AccountTypeAsset,
			NormalSide: AccountTypeAsset.NormalSide(),
			CreatedAt:  time.Now().UTC(),
		},
		{
			ID:         uuid.New(),
			Code:       PayoutLiabilityAccountCode,
			Name:       "Payouts owed",
			Type:       AccountTypeLiability,
			NormalSide: AccountTypeLiability.NormalSide(),
			CreatedAt:  time.Now().UTC(),
		},
	}

	for _, account := range accounts {
		created, err := s.repo.GetOrCreateAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to ensure account %s: %w", account.Code, err)
		}
		s.logger.Info("system account ready", "code", created.Code, "type", created.Type)
	}

	return nil
}

// CreateBalancedTransaction creates a transaction of exactly two immutable
// entries in one atomic unit, together with its LedgerTransactionCreated
// event and the read-model updates for the affected accounts.
//
// Idempotent on id: a repeat call with an identical payload returns the
// existing transaction; the same id with a different payload fails with
// ErrTransactionConflict.
func (s *Service) CreateBalancedTransaction(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	if in.ID == "" {
		return nil, ErrInvalidTransactionID
	}
	if !in.Debit.Amount.IsPositive() || !in.Credit.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if in.Debit.Amount.Currency() != in.Credit.Amount.Currency() {
		return nil, ErrCurrencyMismatch
	}
	if in.Debit.Amount.Cmp(in.Credit.Amount) != 0 {
		return nil, ErrUnbalanced
	}

	var result *Transaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tx, err := s.createInTx(ctx, in)
		if err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) createInTx(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	debitAccount, err := s.repo.GetAccountByCode(ctx, in.Debit.AccountCode)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("debit account %q: %w", in.Debit.AccountCode, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to resolve debit account: %w", err)
	}
	creditAccount, err := s.repo.GetAccountByCode(ctx, in.Credit.AccountCode)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("credit account %q: %w", in.Credit.AccountCode, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to resolve credit account: %w", err)
	}

	existing, err := s.repo.GetTransaction(ctx, in.ID)
	if err == nil {
		if s.matchesExisting(existing, debitAccount.ID, creditAccount.ID, in) {
			s.logger.Debug("transaction already committed", "transaction_id", in.ID)
			return existing, nil
		}
		return nil, fmt.Errorf("transaction %s: %w", in.ID, ErrTransactionConflict)
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, fmt.Errorf("failed to check transaction id: %w", err)
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:          in.ID,
		Description: in.Description,
		CreatedAt:   now,
		Entries: []*Entry{
			{
				ID:            uuid.New(),
				TransactionID: in.ID,
				AccountID:     debitAccount.ID,
				Side:          Debit,
				Amount:        in.Debit.Amount,
				CreatedAt:     now,
			},
			{
				ID:            uuid.New(),
				TransactionID: in.ID,
				AccountID:     creditAccount.ID,
				Side:          Credit,
				Amount:        in.Credit.Amount,
				CreatedAt:     now,
			},
		},
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	event, err := s.events.Append(ctx,
		TransactionCreatedEventID(tx.ID),
		eventlog.AggregateTransaction,
		tx.ID,
		EventTypeTransactionCreated,
		map[string]interface{}{
			"transaction_id": tx.ID,
			"description":    tx.Description,
			"debit_account":  debitAccount.Code,
			"credit_account": creditAccount.Code,
			"amount":         in.Debit.Amount.String(),
			"currency":       in.Debit.Amount.Currency(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction event: %w", err)
	}

	accounts := map[uuid.UUID]*Account{
		debitAccount.ID:  debitAccount,
		creditAccount.ID: creditAccount,
	}
	deltas := make([]readmodel.AccountDelta, 0, len(tx.Entries))
	for _, entry := range tx.Entries {
		account := accounts[entry.AccountID]
		deltas = append(deltas, readmodel.AccountDelta{
			AccountID: entry.AccountID,
			Signed:    entry.SignedAmount(account.NormalSide),
			Raw:       entry.RawAmount(),
		})
	}
	if err := s.projector.ApplyEntryDeltas(ctx, deltas, event.SequenceNumber); err != nil {
		return nil, err
	}

	summary := &readmodel.TransactionSummary{
		TransactionID: tx.ID,
		DebitAccount:  debitAccount.Code,
		CreditAccount: creditAccount.Code,
		Amount:        in.Debit.Amount,
		CreatedAt:     now,
	}
	if err := s.projector.RecordTransactionSummary(ctx, summary); err != nil {
		return nil, err
	}

	s.logger.Info("ledger transaction committed",
		"transaction_id", tx.ID,
		"debit_account", debitAccount.Code,
		"credit_account", creditAccount.Code,
		"amount", in.Debit.Amount.String(),
		"sequence", event.SequenceNumber,
	)

	return tx, nil
}

func (s *Service) matchesExisting(existing *Transaction, debitAccountID, creditAccountID uuid.UUID, in CreateTransactionInput) bool {
	debit := existing.DebitEntry()
	credit := existing.CreditEntry()
	if debit == nil || credit == nil {
		return false
	}
	return debit.AccountID == debitAccountID &&
		credit.AccountID == creditAccountID &&
		debit.Amount.Equal(in.Debit.Amount) &&
		credit.Amount.Equal(in.Credit.Amount) &&
		existing.Description == in.Description
}

// GetTransaction retrieves a transaction with its entries
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// GetAccount retrieves an account by code
func (s *Service) GetAccount(ctx context.Context, code string) (*Account, error) {
	return s.repo.GetAccountByCode(ctx, code)
}

// GetAccountBalance returns the projected balance for an account. With
// forceRefresh the balance is recomputed from entries with a single
// aggregation query instead.
func (s *Service) GetAccountBalance(ctx context.Context, accountID uuid.UUID, forceRefresh bool) (money.Amount, error) {
	if forceRefresh {
		signed, _, err := s.repo.CalculateBalanceFromEntries(ctx, accountID)
		return signed, err
	}

	balance, err := s.projector.GetAccountBalance(ctx, accountID)
	if err != nil {
		return money.Amount{}, fmt.Errorf("failed to get account balance: %w", err)
	}
	return balance.Balance, nil
}

// StreamEntries iterates an account's entries ordered by (created_at, id).
// Used for rebuilds and audits; never OFFSET-paginated.
func (s *Service) StreamEntries(ctx context.Context, accountID uuid.UUID, cursor *EntryCursor, limit int) (*EntryPage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListEntriesByAccount(ctx, accountID, cursor, limit)
}

// ReconcileBalance verifies that the projected balance matches the signed
// sum over the account's entries.
func (s *Service) ReconcileBalance(ctx context.Context, accountID uuid.UUID) error {
	projected, err := s.projector.GetAccountBalance(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get projected balance: %w", err)
	}

	calculated, _, err := s.repo.CalculateBalanceFromEntries(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from entries: %w", err)
	}

	if projected.Balance.Cmp(calculated) != 0 {
		return fmt.Errorf("balance mismatch for %s: projected=%s, calculated=%s",
			accountID, projected.Balance.String(), calculated.String())
	}

	return nil
}
