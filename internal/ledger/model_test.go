package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/pkg/money"
)

func validTransaction(t *testing.T) *Transaction {
	t.Helper()
	now := time.Now().UTC()
	amount := money.MustParse("100.00", "USD")
	return &Transaction{
		ID:        "payout_k1",
		CreatedAt: now,
		Entries: []*Entry{
			{ID: uuid.New(), TransactionID: "payout_k1", AccountID: uuid.New(), Side: Debit, Amount: amount, CreatedAt: now},
			{ID: uuid.New(), TransactionID: "payout_k1", AccountID: uuid.New(), Side: Credit, Amount: amount, CreatedAt: now},
		},
	}
}

func TestAccountTypeNormalSide(t *testing.T) {
	assert.Equal(t, Debit, AccountTypeAsset.NormalSide())
	assert.Equal(t, Debit, AccountTypeExpense.NormalSide())
	assert.Equal(t, Credit, AccountTypeLiability.NormalSide())
	assert.Equal(t, Credit, AccountTypeEquity.NormalSide())
	assert.Equal(t, Credit, AccountTypeRevenue.NormalSide())
}

func TestAccountValidate(t *testing.T) {
	account := &Account{
		ID:         uuid.New(),
		Code:       CashAccountCode,
		Name:       "Operating cash",
		Type:       AccountTypeAsset,
		NormalSide: Debit,
	}
	require.NoError(t, account.Validate())

	noCode := *account
	noCode.Code = ""
	assert.ErrorIs(t, noCode.Validate(), ErrInvalidAccountCode)

	badType := *account
	badType.Type = "SAVINGS"
	assert.ErrorIs(t, badType.Validate(), ErrInvalidAccountType)

	badSide := *account
	badSide.NormalSide = "BOTH"
	assert.ErrorIs(t, badSide.Validate(), ErrInvalidSide)
}

func TestTransactionValidate(t *testing.T) {
	t.Run("valid balanced pair", func(t *testing.T) {
		require.NoError(t, validTransaction(t).Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		tx := validTransaction(t)
		tx.ID = ""
		assert.ErrorIs(t, tx.Validate(), ErrInvalidTransactionID)
	})

	t.Run("wrong entry count", func(t *testing.T) {
		tx := validTransaction(t)
		tx.Entries = tx.Entries[:1]
		assert.ErrorIs(t, tx.Validate(), ErrEntryCount)

		tx = validTransaction(t)
		tx.Entries = append(tx.Entries, tx.Entries[0])
		assert.ErrorIs(t, tx.Validate(), ErrEntryCount)
	})

	t.Run("two entries on the same side", func(t *testing.T) {
		tx := validTransaction(t)
		tx.Entries[1].Side = Debit
		assert.ErrorIs(t, tx.Validate(), ErrUnbalanced)
	})

	t.Run("unequal amounts", func(t *testing.T) {
		tx := validTransaction(t)
		tx.Entries[1].Amount = money.MustParse("99.99", "USD")
		assert.ErrorIs(t, tx.Validate(), ErrUnbalanced)
	})

	t.Run("negative amount", func(t *testing.T) {
		tx := validTransaction(t)
		tx.Entries[0].Amount = money.MustParse("-100.00", "USD")
		tx.Entries[1].Amount = money.MustParse("-100.00", "USD")
		assert.ErrorIs(t, tx.Validate(), ErrNegativeAmount)
	})
}

func TestEntrySignedAmount(t *testing.T) {
	amount := money.MustParse("25.00", "USD")

	debit := &Entry{Side: Debit, Amount: amount}
	credit := &Entry{Side: Credit, Amount: amount}

	// A debit increases a debit-normal account and decreases a
	// credit-normal one.
	assert.Equal(t, amount, debit.SignedAmount(Debit))
	assert.Equal(t, amount.Neg(), debit.SignedAmount(Credit))
	assert.Equal(t, amount, credit.SignedAmount(Credit))
	assert.Equal(t, amount.Neg(), credit.SignedAmount(Debit))

	// Raw audit sign: debits positive, credits negative.
	assert.Equal(t, amount, debit.RawAmount())
	assert.Equal(t, amount.Neg(), credit.RawAmount())
}

func TestTransactionEntryAccessors(t *testing.T) {
	tx := validTransaction(t)
	require.NotNil(t, tx.DebitEntry())
	require.NotNil(t, tx.CreditEntry())
	assert.Equal(t, Debit, tx.DebitEntry().Side)
	assert.Equal(t, Credit, tx.CreditEntry().Side)
}

func TestTransactionCreatedEventID(t *testing.T) {
	assert.Equal(t, "ledger.transaction.created:payout_k1", TransactionCreatedEventID("payout_k1"))
}
