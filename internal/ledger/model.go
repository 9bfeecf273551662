package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/pkg/money"
)

// Side represents whether an entry is a debit or credit
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// IsValid reports whether the side is one of the two known values.
func (s Side) IsValid() bool {
	return s == Debit || s == Credit
}

// AccountType classifies an account in the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid reports whether the account type is known.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which accounts of this type increase.
// Asset and Expense accounts are debit-normal; Liability, Equity and Revenue
// accounts are credit-normal.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return Debit
	default:
		return Credit
	}
}

// Bootstrap account codes. The payout engine debits the liability account and
// credits the cash account; both must exist before any payout completes.
const (
	CashAccountCode            = "CASH_001"
	PayoutLiabilityAccountCode = "PAYOUT_LIABILITY_001"
)

// Account represents an account in the ledger system.
// IMMUTABLE after creation.
type Account struct {
	ID         uuid.UUID
	Code       string
	Name       string
	Type       AccountType
	NormalSide Side
	CreatedAt  time.Time
}

// Validate validates the account
func (a *Account) Validate() error {
	if a.Code == "" {
		return ErrInvalidAccountCode
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if !a.NormalSide.IsValid() {
		return ErrInvalidSide
	}
	return nil
}

// Transaction represents a balanced double-entry transaction.
// The id is a deterministic string (e.g. "payout_<idempotency key>") so that
// retried writers collide on the primary key instead of double-posting.
// A transaction exists only together with its two entries; IMMUTABLE.
type Transaction struct {
	ID          string
	Description string
	CreatedAt   time.Time
	Entries     []*Entry
}

// DebitEntry returns the debit-side entry, or nil.
func (t *Transaction) DebitEntry() *Entry {
	for _, e := range t.Entries {
		if e.Side == Debit {
			return e
		}
	}
	return nil
}

// CreditEntry returns the credit-side entry, or nil.
func (t *Transaction) CreditEntry() *Entry {
	for _, e := range t.Entries {
		if e.Side == Credit {
			return e
		}
	}
	return nil
}

// Validate checks the double-entry discipline: exactly two entries, one per
// side, equal amounts, each non-negative.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return ErrInvalidTransactionID
	}
	if len(t.Entries) != 2 {
		return ErrEntryCount
	}

	for _, e := range t.Entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	debit := t.DebitEntry()
	credit := t.CreditEntry()
	if debit == nil || credit == nil {
		return ErrUnbalanced
	}
	if debit.Amount.Cmp(credit.Amount) != 0 {
		return ErrUnbalanced
	}

	return nil
}

// Entry represents a single debit or credit in the double-entry ledger.
// IMMUTABLE: entries are never updated or deleted.
type Entry struct {
	ID            uuid.UUID
	TransactionID string
	AccountID     uuid.UUID
	Side          Side
	Amount        money.Amount
	CreatedAt     time.Time
}

// Validate validates the entry
func (e *Entry) Validate() error {
	if !e.Side.IsValid() {
		return ErrInvalidSide
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// SignedAmount returns the entry amount signed for the given normal side:
// positive when the entry falls on the account's increasing side.
func (e *Entry) SignedAmount(normalSide Side) money.Amount {
	if e.Side == normalSide {
		return e.Amount
	}
	return e.Amount.Neg()
}

// RawAmount returns the audit-signed amount: debits positive, credits negative.
func (e *Entry) RawAmount() money.Amount {
	if e.Side == Debit {
		return e.Amount
	}
	return e.Amount.Neg()
}

// EntryPage is one page of a cursor iteration over an account's entries,
// ordered by (created_at, id).
type EntryPage struct {
	Entries    []*Entry
	NextCursor *EntryCursor
}

// EntryCursor is an opaque position in the (created_at, id) ordering.
type EntryCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}
