package money

import (
	"fmt"
	"strings"
)

// Scale is the fixed number of decimal places carried by every Amount.
const Scale = 2

// DefaultCurrency is used when a request does not name a currency.
const DefaultCurrency = "USD"

// Amount is a signed fixed-scale decimal with an attached currency label.
// The value is held in minor units (cents for scale 2) so all arithmetic is
// exact integer arithmetic. Never a binary float.
type Amount struct {
	units    int64
	currency string
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Amount {
	return Amount{units: 0, currency: currency}
}

// FromUnits builds an Amount from minor units (e.g. 10000 → "100.00").
func FromUnits(units int64, currency string) Amount {
	return Amount{units: units, currency: currency}
}

// Parse converts a decimal string like "100.00" or "-0.5" into an Amount.
// Uses string manipulation to avoid floating point precision issues.
func Parse(amountStr, currency string) (Amount, error) {
	if amountStr == "" {
		return Amount{}, fmt.Errorf("amount is required")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	s := amountStr
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" || s == "." {
		return Amount{}, fmt.Errorf("invalid amount format: %q", amountStr)
	}

	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}

	decPart := ""
	if len(parts) > 1 {
		decPart = parts[1]
	}
	if len(decPart) > Scale {
		return Amount{}, fmt.Errorf("amount %q exceeds scale %d", amountStr, Scale)
	}
	for len(decPart) < Scale {
		decPart += "0"
	}

	combined := strings.TrimLeft(intPart+decPart, "0")
	if combined == "" {
		combined = "0"
	}

	var units int64
	for _, ch := range combined {
		if ch < '0' || ch > '9' {
			return Amount{}, fmt.Errorf("invalid amount format: %q", amountStr)
		}
		d := int64(ch - '0')
		if units > (1<<63-1-d)/10 {
			return Amount{}, fmt.Errorf("amount %q out of range", amountStr)
		}
		units = units*10 + d
	}
	if negative {
		units = -units
	}

	return Amount{units: units, currency: currency}, nil
}

// MustParse is Parse that panics on error; for test fixtures and bootstrap code.
func MustParse(amountStr, currency string) Amount {
	a, err := Parse(amountStr, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// Units returns the amount in minor units.
func (a Amount) Units() int64 {
	return a.units
}

// Currency returns the ISO 4217 currency label.
func (a Amount) Currency() string {
	return a.currency
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.units > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool {
	return a.units < 0
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.units == 0
}

// Add returns a+b. Both amounts must carry the same currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.currency != b.currency {
		return Amount{}, fmt.Errorf("currency mismatch: %s vs %s", a.currency, b.currency)
	}
	return Amount{units: a.units + b.units, currency: a.currency}, nil
}

// Neg returns the negated amount.
func (a Amount) Neg() Amount {
	return Amount{units: -a.units, currency: a.currency}
}

// Equal reports whether two amounts have the same value and currency.
func (a Amount) Equal(b Amount) bool {
	return a.units == b.units && a.currency == b.currency
}

// Cmp compares numeric values, ignoring currency: -1 if a<b, 0 if equal, +1 if a>b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.units < b.units:
		return -1
	case a.units > b.units:
		return 1
	default:
		return 0
	}
}

// String renders the amount as a decimal string with exactly Scale places,
// e.g. 10000 → "100.00", -50 → "-0.50". This is also the representation
// stored in NUMERIC database columns.
func (a Amount) String() string {
	units := a.units
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}

	s := fmt.Sprintf("%d", units)
	for len(s) <= Scale {
		s = "0" + s
	}
	pos := len(s) - Scale
	return sign + s[:pos] + "." + s[pos:]
}
