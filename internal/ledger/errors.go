package ledger

import "errors"

// Account errors
var (
	ErrInvalidAccountCode = errors.New("invalid account code")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateAccount   = errors.New("account code already exists")
)

// Entry errors
var (
	ErrInvalidSide    = errors.New("invalid debit/credit side")
	ErrNegativeAmount = errors.New("entry amount cannot be negative")
)

// Transaction errors
var (
	ErrInvalidTransactionID = errors.New("transaction id cannot be empty")
	ErrEntryCount           = errors.New("double-entry transaction requires exactly 2 entries")
	ErrUnbalanced           = errors.New("transaction debits and credits do not balance")
	ErrNonPositiveAmount    = errors.New("transaction amount must be positive")
	ErrCurrencyMismatch     = errors.New("entry currencies do not match")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionConflict  = errors.New("transaction id already exists with different payload")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
)
