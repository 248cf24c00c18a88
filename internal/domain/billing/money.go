package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places persisted for money
const AmountScale = 4

// DefaultCurrency is used when an invoice is created without one
const DefaultCurrency = "USD"

// ValidateAmount checks a money amount is positive and fits the stored scale.
// Amounts that would be rounded by the database would break recomputation.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}


// NormalizeCurrency upper-cases an ISO 4217 code. Empty means DefaultCurrency.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
