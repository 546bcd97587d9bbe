package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDustThreshold is the value, in display currency, below which a
// holding counts as dust.
var DefaultDustThreshold = decimal.NewFromInt(1)

var (
	ErrEmptyAmount    = errors.New("amount is required")
	ErrInvalidAmount  = errors.New("invalid amount format")
	ErrNonPositive    = errors.New("amount must be greater than zero")
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// ParseAmount parses a human-readable decimal string such as "0.0005".
// Surrounding whitespace is ignored.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}

	return d, nil
}

// ParsePositive is ParseAmount that also rejects zero.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

// Value returns amount * price.
func Value(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}

// IsDust reports whether value is strictly below threshold. A zero value is
// always dust.
func IsDust(value, threshold decimal.Decimal) bool {
	if value.IsZero() {
		return true
	}
	return value.Abs().LessThan(threshold)
}

// Format renders value with two decimals followed by the currency code,
// e.g. "1234.50 USD".
func Format(value decimal.Decimal, currency string) string {
	return value.StringFixed(2) + " " + strings.ToUpper(currency)
}
