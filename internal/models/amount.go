package models

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits kept for money and quantities
const AmountScale = 8

// FormatAmount renders an amount with exactly AmountScale digits, truncating extra precision
func FormatAmount(d decimal.Decimal) string {
	return d.Truncate(AmountScale).StringFixed(AmountScale)
}

// FitsScale reports whether d has no digits beyond AmountScale
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// Cost returns quantity times price rounded half-up to AmountScale
func Cost(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Round(AmountScale)
}
