package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToPaise converts a major-unit amount to integer minor units, rounding half away from zero.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromPaise converts integer minor units to a major-unit decimal.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// RoundMoney rounds to two decimal places.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
