package models

import (
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// LineAmounts are the derived money fields of one document line.
// Rounding to the currency's minor unit happens here, once; aggregates
// sum the rounded values and never re-round.
type LineAmounts struct {
	Amount    decimal.Decimal `json:"amount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
	// discount exceeded price; user-entered data, warn instead of reject
	NegativeAmount bool `json:"negative_amount,omitempty"`
}

// CalculateLineAmounts computes amount/tax/total for one line.
// amount = (unitRate - discountPerUnit) * quantity, quantity defaulting
// to 1 for service/non-quantity items.
func CalculateLineAmounts(quantity, unitRate, discountPerUnit, taxRate decimal.Decimal) LineAmounts {

	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}

	amount := utils.RoundMoney(unitRate.Sub(discountPerUnit).Mul(quantity))
	taxAmount := utils.RoundMoney(utils.CalculateTaxAmount(amount, taxRate))

	return LineAmounts{
		Amount:         amount,
		TaxAmount:      taxAmount,
		Total:          amount.Add(taxAmount),
		NegativeAmount: amount.IsNegative(),
	}
}

// DocumentTotals are the aggregate money fields of a document.
type DocumentTotals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

type documentLine interface {
	lineQuantity() decimal.Decimal
	lineDiscountPerUnit() decimal.Decimal
	lineAmount() decimal.Decimal
	lineTaxAmount() decimal.Decimal
}

// AggregateDocument sums already-rounded line values.
func AggregateDocument[T documentLine](lines []T) DocumentTotals {

	var totals DocumentTotals
	for _, line := range lines {
		qty := line.lineQuantity()
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		totals.Subtotal = totals.Subtotal.Add(line.lineAmount())
		totals.TotalDiscount = totals.TotalDiscount.Add(line.lineDiscountPerUnit().Mul(qty))
		totals.TaxAmount = totals.TaxAmount.Add(line.lineTaxAmount())
	}
	totals.GrandTotal = totals.Subtotal.Add(totals.TaxAmount)
	return totals
}
