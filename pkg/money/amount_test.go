package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/pkg/money"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		units int64
	}{
		{"100.00", 10000},
		{"100", 10000},
		{"100.5", 10050},
		{"0.01", 1},
		{"0", 0},
		{"-0.50", -50},
		{"-12", -1200},
		{".5", 50},
		{"007.70", 770},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := money.Parse(tt.input, "USD")
			require.NoError(t, err)
			assert.Equal(t, tt.units, a.Units())
			assert.Equal(t, "USD", a.Currency())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	invalid := []string{"", ".", "-", "abc", "1.2.3", "10,00", "1.234"}

	for _, input := range invalid {
		t.Run(input, func(t *testing.T) {
			_, err := money.Parse(input, "USD")
			assert.Error(t, err)
		})
	}
}

func TestParse_DefaultCurrency(t *testing.T) {
	a, err := money.Parse("1.00", "")
	require.NoError(t, err)
	assert.Equal(t, money.DefaultCurrency, a.Currency())
}

func TestString(t *testing.T) {
	tests := []struct {
		units int64
		want  string
	}{
		{10000, "100.00"},
		{10050, "100.50"},
		{1, "0.01"},
		{0, "0.00"},
		{-50, "-0.50"},
		{-1200, "-12.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, money.FromUnits(tt.units, "USD").String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{"100.00", "0.01", "-0.50", "9999999.99"}

	for _, input := range inputs {
		a, err := money.Parse(input, "USD")
		require.NoError(t, err)

		b, err := money.Parse(a.String(), "USD")
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
	}
}

func TestAdd(t *testing.T) {
	a := money.MustParse("100.00", "USD")
	b := money.MustParse("0.50", "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "100.50", sum.String())

	diff, err := a.Add(b.Neg())
	require.NoError(t, err)
	assert.Equal(t, "99.50", diff.String())
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := money.MustParse("1.00", "USD")
	b := money.MustParse("1.00", "EUR")

	_, err := a.Add(b)
	assert.Error(t, err)
}

func TestSigns(t *testing.T) {
	assert.True(t, money.MustParse("0.01", "USD").IsPositive())
	assert.True(t, money.MustParse("-0.01", "USD").IsNegative())
	assert.True(t, money.Zero("USD").IsZero())
	assert.False(t, money.Zero("USD").IsPositive())
}

func TestCmp(t *testing.T) {
	a := money.MustParse("1.00", "USD")
	b := money.MustParse("2.00", "USD")

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}
