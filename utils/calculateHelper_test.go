package utils_test

import (
	"testing"

	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

func TestRoundMoney(t *testing.T) {
	got := utils.RoundMoney(decimal.RequireFromString("100.005"))
	if !got.Equal(decimal.RequireFromString("100.01")) {
		t.Fatalf("expected 100.01; got %s", got)
	}
}

func TestCalculateTaxAmount(t *testing.T) {
	got := utils.CalculateTaxAmount(decimal.NewFromInt(1800), decimal.NewFromInt(18))
	if !got.Equal(decimal.NewFromInt(324)) {
		t.Fatalf("expected 324; got %s", got)
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	rate := decimal.NewFromInt(1000)

	// percent discount is taken off the base
	got := utils.CalculateDiscountAmount(rate, decimal.NewFromInt(10), "P")
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100 for 10%% of 1000; got %s", got)
	}

	// flat discount passes through unchanged
	got = utils.CalculateDiscountAmount(rate, decimal.NewFromInt(75), "A")
	if !got.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected 75; got %s", got)
	}

	// zero and negative discounts resolve to zero
	for _, d := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		got = utils.CalculateDiscountAmount(rate, d, "P")
		if !got.IsZero() {
			t.Fatalf("expected zero for discount %s; got %s", d, got)
		}
	}
}
