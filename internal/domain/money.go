package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits carried by amounts (paise).
const AmountScale = 2

// ValidAmount reports whether d is a positive amount with at most two fractional digits.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(AmountScale))
}

// SameAmount compares two amounts exactly.
func SameAmount(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

// SumAmounts adds amounts without intermediate rounding.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
