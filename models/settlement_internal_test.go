package models

import (
	"testing"

	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

func TestPlanSettlementPartialThenPaid(t *testing.T) {
	balance := decimal.NewFromInt(2124)

	newBalance, err := planSettlement(balance, decimal.NewFromInt(1000), decimal.Zero)
	if err != nil {
		t.Fatalf("planSettlement: %v", err)
	}
	if !newBalance.Equal(decimal.NewFromInt(1124)) {
		t.Fatalf("expected balance 1124; got %s", newBalance)
	}
	if settledStatus(newBalance) != SalesInvoiceStatusPartialPaid {
		t.Fatalf("expected Partial Paid; got %s", settledStatus(newBalance))
	}

	newBalance, err = planSettlement(newBalance, decimal.NewFromInt(624), decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("planSettlement: %v", err)
	}
	if !newBalance.IsZero() {
		t.Fatalf("expected zero balance; got %s", newBalance)
	}
	if settledStatus(newBalance) != SalesInvoiceStatusPaid {
		t.Fatalf("expected Paid; got %s", settledStatus(newBalance))
	}
}

func TestPlanSettlementRejectsNegativeAmounts(t *testing.T) {
	_, err := planSettlement(decimal.NewFromInt(100), decimal.NewFromInt(-1), decimal.Zero)
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount; got %v", err)
	}
	_, err = planSettlement(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(-1))
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount; got %v", err)
	}
}

func TestPlanSettlementRejectsNothingToApply(t *testing.T) {
	_, err := planSettlement(decimal.NewFromInt(100), decimal.Zero, decimal.Zero)
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount; got %v", err)
	}
}

func TestPlanSettlementRejectsZeroBalanceInvoice(t *testing.T) {
	_, err := planSettlement(decimal.Zero, decimal.NewFromInt(50), decimal.Zero)
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount for settled invoice; got %v", err)
	}
}

func TestPlanSettlementRejectsOverApplication(t *testing.T) {
	_, err := planSettlement(decimal.NewFromInt(100), decimal.NewFromInt(80), decimal.NewFromInt(30))
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount for over-application; got %v", err)
	}
}
