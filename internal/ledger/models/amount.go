package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// AmountMaxDigits and AmountDecimalPlaces bound request amounts.
	AmountMaxDigits     = 15
	AmountDecimalPlaces = 2
)

// ValidateAmount enforces the request-side amount rules: non-negative, at most
// two fractional digits, at most fifteen digits overall.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount %s must not be negative", amount)
	}
	if !amount.Equal(amount.Truncate(AmountDecimalPlaces)) {
		return fmt.Errorf("amount %s has more than %d decimal places", amount, AmountDecimalPlaces)
	}
	digits := len(amount.Truncate(0).Abs().String())
	if amount.LessThan(decimal.NewFromInt(1)) {
		digits = 0
	}
	if digits+AmountDecimalPlaces > AmountMaxDigits {
		return fmt.Errorf("amount %s exceeds %d digits", amount, AmountMaxDigits)
	}
	return nil
}
