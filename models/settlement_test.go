package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/models"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// seeds the reference data a settlement flow needs and returns the
// client, item and cash payment mode.
func seedSettlementFixtures(t *testing.T, ctx context.Context) (*models.Client, *models.Item, *models.PaymentMode) {
	t.Helper()

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Acme", State: "Karnataka"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	nine := decimal.NewFromInt(9)
	for _, rate := range []models.NewTaxRate{
		{Kind: models.TaxKindCGST, Rate: nine},
		{Kind: models.TaxKindSGST, Rate: nine},
		{Kind: models.TaxKindIGST, Rate: decimal.NewFromInt(18)},
	} {
		r := rate
		if _, err := models.CreateTaxRate(ctx, &r); err != nil {
			t.Fatalf("CreateTaxRate: %v", err)
		}
	}

	item, err := models.CreateItem(ctx, &models.NewItem{
		Name:     "Widget",
		UnitRate: decimal.NewFromInt(1000),
		Cgst:     nine,
		Sgst:     nine,
		Igst:     decimal.NewFromInt(18),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	mode, err := models.CreatePaymentMode(ctx, &models.NewPaymentMode{Name: "Cash", IsCash: utils.NewTrue()})
	if err != nil {
		t.Fatalf("CreatePaymentMode: %v", err)
	}
	return client, item, mode
}

func TestSettlementLifecycle(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Settlement Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	// price 1000, discount 100, qty 2, 18% GST: total 2124
	invoice, warnings, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(2), DetailDiscount: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected tax warnings: %+v", warnings)
	}
	if !invoice.InvoiceTotalAmount.Equal(decimal.NewFromInt(2124)) {
		t.Fatalf("expected grand total 2124; got %s", invoice.InvoiceTotalAmount)
	}
	if invoice.CurrentStatus != models.SalesInvoiceStatusConfirmed {
		t.Fatalf("expected Confirmed; got %s", invoice.CurrentStatus)
	}

	// partial payment moves Confirmed -> Partial Paid
	result, err := models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:     invoice.ID,
		Amount:        decimal.NewFromInt(1000),
		PaymentModeId: mode.ID,
	})
	if err != nil {
		t.Fatalf("SettleSalesInvoice: %v", err)
	}
	if result.NewStatus != string(models.SalesInvoiceStatusPartialPaid) {
		t.Fatalf("expected Partial Paid; got %s", result.NewStatus)
	}
	if !result.NewBalance.Equal(decimal.NewFromInt(1124)) {
		t.Fatalf("expected balance 1124; got %s", result.NewBalance)
	}

	// advance receipt, then draw it down to finish the invoice
	advance, _, err := models.CreateReceipt(ctx, &models.NewReceipt{
		ClientId:      client.ID,
		ReceiptDate:   time.Now(),
		PaymentType:   models.PaymentTypeAdvance,
		PaymentModeId: mode.ID,
		Amount:        decimal.NewFromInt(2000),
	})
	if err != nil {
		t.Fatalf("CreateReceipt(advance): %v", err)
	}
	if !advance.BalanceAmount.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("advance balance should start at full amount; got %s", advance.BalanceAmount)
	}

	result, err = models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:        invoice.ID,
		AdvanceReceiptId: advance.ID,
		AdvanceAmount:    decimal.NewFromInt(1124),
	})
	if err != nil {
		t.Fatalf("SettleSalesInvoice(advance): %v", err)
	}
	if result.NewStatus != string(models.SalesInvoiceStatusPaid) {
		t.Fatalf("expected Paid; got %s", result.NewStatus)
	}

	// advance credit is conserved: 2000 - 1124 = 876
	reloaded, err := models.GetReceipt(ctx, advance.ID)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if !reloaded.BalanceAmount.Equal(decimal.NewFromInt(876)) {
		t.Fatalf("expected advance balance 876; got %s", reloaded.BalanceAmount)
	}

	// settling a paid invoice is rejected
	_, err = models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:     invoice.ID,
		Amount:        decimal.NewFromInt(1),
		PaymentModeId: mode.ID,
	})
	if !utils.IsKind(err, utils.ErrorKindInvalidAmount) {
		t.Fatalf("expected InvalidAmount for paid invoice; got %v", err)
	}
}

func TestSettlementAdvanceOverdraw(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Overdraw Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	advance, _, err := models.CreateReceipt(ctx, &models.NewReceipt{
		ClientId:      client.ID,
		ReceiptDate:   time.Now(),
		PaymentType:   models.PaymentTypeAdvance,
		PaymentModeId: mode.ID,
		Amount:        decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateReceipt(advance): %v", err)
	}

	_, err = models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:        invoice.ID,
		AdvanceReceiptId: advance.ID,
		AdvanceAmount:    decimal.NewFromInt(500),
	})
	if !utils.IsKind(err, utils.ErrorKindAdvanceOverdraw) {
		t.Fatalf("expected AdvanceOverdraw; got %v", err)
	}

	// a failed draw must not touch the advance balance
	reloaded, err := models.GetReceipt(ctx, advance.ID)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if !reloaded.BalanceAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("advance balance changed on failed draw; got %s", reloaded.BalanceAmount)
	}
}

func TestSettlementNonCashRequiresReferenceAndAccount(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Instrument Co")
	client, item, _ := seedSettlementFixtures(t, ctx)

	bank, err := models.CreatePaymentMode(ctx, &models.NewPaymentMode{Name: "Bank Transfer"})
	if err != nil {
		t.Fatalf("CreatePaymentMode: %v", err)
	}
	account, err := models.CreateBankAccount(ctx, &models.NewBankAccount{Name: "Operating", AccountNumber: "42"})
	if err != nil {
		t.Fatalf("CreateBankAccount: %v", err)
	}

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	_, err = models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:     invoice.ID,
		Amount:        decimal.NewFromInt(100),
		PaymentModeId: bank.ID,
	})
	if !utils.IsKind(err, utils.ErrorKindIncompleteSettlementData) {
		t.Fatalf("expected IncompleteSettlementData; got %v", err)
	}

	_, err = models.SettleSalesInvoice(ctx, &models.NewSettlement{
		InvoiceId:        invoice.ID,
		Amount:           decimal.NewFromInt(100),
		PaymentModeId:    bank.ID,
		ReferenceNumber:  "NEFT-001",
		DepositAccountId: account.ID,
	})
	if err != nil {
		t.Fatalf("non-cash settlement with reference and account should pass: %v", err)
	}
}

func TestSettlementIdempotencyReplay(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Idempotent Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	input := &models.NewSettlement{
		InvoiceId:      invoice.ID,
		Amount:         decimal.NewFromInt(1000),
		PaymentModeId:  mode.ID,
		IdempotencyKey: "settle-once",
	}
	first, err := models.SettleSalesInvoice(ctx, input)
	if err != nil {
		t.Fatalf("SettleSalesInvoice: %v", err)
	}
	if first.Replayed {
		t.Fatalf("first submission must not be a replay")
	}

	// same token: the stored outcome comes back, nothing is re-applied
	second, err := models.SettleSalesInvoice(ctx, input)
	if err != nil {
		t.Fatalf("SettleSalesInvoice(replay): %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed outcome")
	}
	if !second.NewBalance.Equal(first.NewBalance) {
		t.Fatalf("replayed balance %s differs from original %s", second.NewBalance, first.NewBalance)
	}

	reloaded, err := models.GetSalesInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !reloaded.InvoiceTotalPaidAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("double application detected; paid amount %s", reloaded.InvoiceTotalPaidAmount)
	}
}

func TestCreateReceiptIdempotentRetry(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Receipt Retry Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	input := &models.NewReceipt{
		ClientId:       client.ID,
		ReceiptDate:    time.Now(),
		PaymentType:    models.PaymentTypeFull,
		PaymentModeId:  mode.ID,
		SalesInvoiceId: &invoice.ID,
		Amount:         invoice.InvoiceTotalAmount,
		IdempotencyKey: "receipt-once",
	}
	first, settlement, err := models.CreateReceipt(ctx, input)
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if settlement == nil || settlement.Replayed {
		t.Fatalf("first submission must settle and not be a replay; got %+v", settlement)
	}

	// a timed-out client retries: same receipt comes back, no second
	// number, no second application
	second, replayed, err := models.CreateReceipt(ctx, input)
	if err != nil {
		t.Fatalf("CreateReceipt(retry): %v", err)
	}
	if second.ReceiptNumber != first.ReceiptNumber {
		t.Fatalf("retry allocated a new number %s; original was %s", second.ReceiptNumber, first.ReceiptNumber)
	}
	if replayed == nil || !replayed.Replayed {
		t.Fatalf("expected replayed settlement outcome; got %+v", replayed)
	}

	reloaded, err := models.GetSalesInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !reloaded.InvoiceTotalPaidAmount.Equal(invoice.InvoiceTotalAmount) {
		t.Fatalf("double application detected; paid amount %s", reloaded.InvoiceTotalPaidAmount)
	}
	if reloaded.CurrentStatus != models.SalesInvoiceStatusPaid {
		t.Fatalf("expected Paid; got %s", reloaded.CurrentStatus)
	}

	receipts, err := models.GetReceipts(ctx, &client.ID, nil)
	if err != nil {
		t.Fatalf("GetReceipts: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected exactly one receipt row; got %d", len(receipts))
	}
}

func TestSettlementReclaimsStaleStartedToken(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Stale Token Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	db := config.GetDB()

	// a crash between claim and finish leaves a STARTED row behind
	stuck := models.IdempotencyKey{
		BusinessId:  businessId,
		HandlerName: "SettleSalesInvoice",
		MessageId:   "crashed-settle",
		Status:      models.IdempotencyStatusStarted,
	}
	if err := db.WithContext(ctx).Create(&stuck).Error; err != nil {
		t.Fatalf("seed stuck token: %v", err)
	}

	input := &models.NewSettlement{
		InvoiceId:      invoice.ID,
		Amount:         decimal.NewFromInt(100),
		PaymentModeId:  mode.ID,
		IdempotencyKey: "crashed-settle",
	}

	// while fresh the token still blocks
	if _, err := models.SettleSalesInvoice(ctx, input); err == nil {
		t.Fatalf("fresh in-flight token must block the retry")
	}

	// past the reclaim age the retry takes over the token
	stale := time.Now().Add(-time.Hour)
	if err := db.WithContext(ctx).Model(&models.IdempotencyKey{}).
		Where("id = ?", stuck.ID).
		UpdateColumn("updated_at", stale).Error; err != nil {
		t.Fatalf("backdate stuck token: %v", err)
	}

	result, err := models.SettleSalesInvoice(ctx, input)
	if err != nil {
		t.Fatalf("SettleSalesInvoice after reclaim: %v", err)
	}
	if result.Replayed {
		t.Fatalf("reclaimed token must run the settlement, not replay")
	}
	if !result.AppliedAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected applied amount 100; got %s", result.AppliedAmount)
	}
}

func TestCreateReceiptSettlesInvoiceInOneTransaction(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Receipt Co")
	client, item, mode := seedSettlementFixtures(t, ctx)

	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{ItemId: item.ID, DetailQty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	receipt, settlement, err := models.CreateReceipt(ctx, &models.NewReceipt{
		ClientId:       client.ID,
		ReceiptDate:    time.Now(),
		PaymentType:    models.PaymentTypeFull,
		PaymentModeId:  mode.ID,
		SalesInvoiceId: &invoice.ID,
		Amount:         invoice.InvoiceTotalAmount,
	})
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if settlement == nil || settlement.NewStatus != string(models.SalesInvoiceStatusPaid) {
		t.Fatalf("expected receipt to settle invoice to Paid; got %+v", settlement)
	}
	if receipt.ReceiptNumber == "" {
		t.Fatalf("receipt number was not allocated")
	}
}
