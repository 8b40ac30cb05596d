package models_test

import (
	"testing"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/models"
	"github.com/shopspring/decimal"
)

func TestCreateSalesInvoicePercentDiscount(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := setupIntegration(t, "Discount Co")
	client, item, _ := seedSettlementFixtures(t, ctx)

	// 10% of the 1000 unit rate lands as a 100 per-unit discount,
	// matching a flat discount of 100
	invoice, _, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		ClientId:    client.ID,
		InvoiceDate: time.Now(),
		Details: []models.NewSalesInvoiceDetail{
			{
				ItemId:         item.ID,
				DetailQty:      decimal.NewFromInt(2),
				DetailDiscount: decimal.NewFromInt(10),
				DiscountType:   models.DiscountTypePercent,
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}

	if !invoice.InvoiceTotalDiscountAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total discount 200; got %s", invoice.InvoiceTotalDiscountAmount)
	}
	if !invoice.InvoiceTotalAmount.Equal(decimal.NewFromInt(2124)) {
		t.Fatalf("expected grand total 2124; got %s", invoice.InvoiceTotalAmount)
	}
	if len(invoice.Details) != 1 || !invoice.Details[0].DetailDiscount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected stored per-unit discount 100; got %+v", invoice.Details)
	}
}
