// Package currency maps ISO 4217 codes onto presentation rounding rules.
// Internal report summation stays in exact decimals; only serialized
// output passes through here.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// defaultScale applies when a code cannot be resolved.
const defaultScale = 2

// MinorUnits returns the number of decimal places for the currency code.
func MinorUnits(code string) int32 {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Cash.Rounding(unit)
	return int32(scale)
}

// Round rounds an amount to the currency's minor-unit precision.
func Round(code string, amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnits(code))
}

// Format renders an amount with its currency code, e.g. "IDR 150000".
func Format(code string, amount decimal.Decimal) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return strings.TrimSpace(code) + " " + amount.StringFixed(defaultScale)
	}
	scale, _ := currency.Cash.Rounding(unit)
	return unit.String() + " " + amount.StringFixed(int32(scale))
}
