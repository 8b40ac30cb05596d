package models_test

import (
	"testing"

	"bitbucket.org/thitsarsoft/billing_backend/models"
	"github.com/shopspring/decimal"
)

func TestCalculateLineAmounts(t *testing.T) {
	// price 1000, discount 100 per unit, qty 2, rate 18%:
	// amount 1800, tax 324, total 2124
	amounts := models.CalculateLineAmounts(
		decimal.NewFromInt(2),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(100),
		decimal.NewFromInt(18),
	)

	if !amounts.Amount.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("expected amount 1800; got %s", amounts.Amount)
	}
	if !amounts.TaxAmount.Equal(decimal.NewFromInt(324)) {
		t.Fatalf("expected tax 324; got %s", amounts.TaxAmount)
	}
	if !amounts.Total.Equal(decimal.NewFromInt(2124)) {
		t.Fatalf("expected total 2124; got %s", amounts.Total)
	}
	if amounts.NegativeAmount {
		t.Fatalf("amount is positive; negative flag must be unset")
	}
}

func TestCalculateLineAmountsZeroQuantityDefaultsToOne(t *testing.T) {
	amounts := models.CalculateLineAmounts(
		decimal.Zero,
		decimal.NewFromInt(500),
		decimal.Zero,
		decimal.NewFromInt(18),
	)
	if !amounts.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected amount 500 for defaulted quantity; got %s", amounts.Amount)
	}
}

func TestCalculateLineAmountsNegativeFlag(t *testing.T) {
	// discount exceeds price: keep the value, flag it
	amounts := models.CalculateLineAmounts(
		decimal.NewFromInt(1),
		decimal.NewFromInt(100),
		decimal.NewFromInt(150),
		decimal.Zero,
	)
	if !amounts.NegativeAmount {
		t.Fatalf("expected negative amount flag")
	}
	if !amounts.Amount.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("expected amount -50; got %s", amounts.Amount)
	}
}

func TestCalculateLineAmountsRoundsOncePerLine(t *testing.T) {
	// 3 * 33.335 = 100.005 -> 100.01 (half away from zero at 2 places)
	amounts := models.CalculateLineAmounts(
		decimal.NewFromInt(3),
		decimal.RequireFromString("33.335"),
		decimal.Zero,
		decimal.Zero,
	)
	if !amounts.Amount.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("expected 100.01; got %s", amounts.Amount)
	}
}

func TestAggregateDocument(t *testing.T) {
	lines := []models.SalesInvoiceDetail{
		{
			DetailQty:       decimal.NewFromInt(2),
			DetailDiscount:  decimal.NewFromInt(100),
			DetailAmount:    decimal.NewFromInt(1800),
			DetailTaxAmount: decimal.NewFromInt(324),
		},
		{
			DetailQty:       decimal.NewFromInt(1),
			DetailDiscount:  decimal.Zero,
			DetailAmount:    decimal.NewFromInt(250),
			DetailTaxAmount: decimal.NewFromInt(45),
		},
	}

	totals := models.AggregateDocument(lines)

	if !totals.Subtotal.Equal(decimal.NewFromInt(2050)) {
		t.Fatalf("expected subtotal 2050; got %s", totals.Subtotal)
	}
	if !totals.TotalDiscount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total discount 200; got %s", totals.TotalDiscount)
	}
	if !totals.TaxAmount.Equal(decimal.NewFromInt(369)) {
		t.Fatalf("expected tax 369; got %s", totals.TaxAmount)
	}
	if !totals.GrandTotal.Equal(decimal.NewFromInt(2419)) {
		t.Fatalf("expected grand total 2419; got %s", totals.GrandTotal)
	}
}

func TestAggregateDocumentEmpty(t *testing.T) {
	totals := models.AggregateDocument([]models.SalesInvoiceDetail{})
	if !totals.GrandTotal.IsZero() {
		t.Fatalf("empty document must total zero; got %s", totals.GrandTotal)
	}
}
