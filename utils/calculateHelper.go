package utils

import (
	"github.com/shopspring/decimal"
)

// currency minor-unit precision; rounding happens once, at the line level
const MoneyPlaces = 2

var decimalOneHundred = decimal.NewFromInt(100)

// RoundMoney rounds to the currency's minor unit.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPlaces)
}

// CalculateTaxAmount applies a percentage rate to an amount.
// Tax-exclusive: (amount / 100) * rate
func CalculateTaxAmount(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.DivRound(decimalOneHundred, 4).Mul(rate)
}

func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {

	var discountAmount decimal.Decimal

	if discount.GreaterThan(decimal.Zero) {
		if discountType == "P" {
			discountAmount = subTotal.Mul(discount).DivRound(decimalOneHundred, 4)
		} else {
			discountAmount = discount
		}
	} else {
		discountAmount = decimal.Zero
	}

	return discountAmount
}
