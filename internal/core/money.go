// Package core holds the budget domain: months, expenses, money and the
// aggregates derived from them.
//
// Amounts are kept as integer cents. Parsing and JSON encoding go through
// decimal values so that user input such as "12.50" or a stored 4.5 maps
// to an exact number of cents.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount in cents.
type Money struct {
	Cents int64
}

var maxCents = decimal.NewFromInt(math.MaxInt64 / 100)

// ParseAmount converts user input to Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Digits
// past the second decimal place are rounded half-up. Anything that is not a
// finite number is rejected with ErrInvalidAmount; the sign is left to the
// caller to judge.
//
//	ParseAmount("4.50")  -> 450
//	ParseAmount("12,345") -> 1235
//	ParseAmount("abc")   -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// MoneyFromFloat converts a stored float amount, rejecting NaN and infinities.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).Round(0).IntPart()}, nil
}

// Cents is a shorthand constructor.
func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.Cents, -2) }

// Float64 is for stores that only speak floating point. Use cents for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String renders the amount with exactly two decimals, e.g. "1995.50".
func (m Money) String() string { return m.Decimal().StringFixed(2) }

// MarshalJSON writes a plain JSON number: 4.5, 2000.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON reads a JSON number (or numeric string) rounding to cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
