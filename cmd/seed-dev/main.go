package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/models"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// Seeds a development tenant with reference data so the engine can be
// exercised end to end: business profile, a client and a vendor, catalog
// items, the GST registry and a cash/bank pair of payment modes.
func main() {
	businessName := flag.String("business-name", "Dev Billing Co", "Name of the seeded business")
	state := flag.String("state", "Karnataka", "Seller jurisdiction of the seeded business")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if err := models.MigrateModels(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  *businessName,
		State: *state,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
		os.Exit(1)
	}
	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
	ctx = utils.SetUserNameInContext(ctx, "SeedDev")

	if _, err := models.CreateClient(ctx, &models.NewClient{
		Name:  "Acme Traders",
		State: *state,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateClient(ctx, &models.NewClient{
		Name:  "Interstate Retail",
		State: "Maharashtra",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateVendor(ctx, &models.NewVendor{
		Name:  "Wholesale Supplies",
		State: "Tamil Nadu",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create vendor: %v\n", err)
		os.Exit(1)
	}

	nine := decimal.NewFromInt(9)
	eighteen := decimal.NewFromInt(18)
	for _, rate := range []models.NewTaxRate{
		{Kind: models.TaxKindCGST, Rate: nine},
		{Kind: models.TaxKindSGST, Rate: nine},
		{Kind: models.TaxKindIGST, Rate: eighteen},
	} {
		r := rate
		if _, err := models.CreateTaxRate(ctx, &r); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create tax rate: %v\n", err)
			os.Exit(1)
		}
	}

	if _, err := models.CreateItem(ctx, &models.NewItem{
		Name:     "Consulting Hour",
		UnitRate: decimal.NewFromInt(1000),
		IsService: utils.NewTrue(),
		Cgst:     nine,
		Sgst:     nine,
		Igst:     eighteen,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create item: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateItem(ctx, &models.NewItem{
		Name:     "Widget",
		UnitRate: decimal.NewFromInt(250),
		Cgst:     nine,
		Sgst:     nine,
		Igst:     eighteen,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create item: %v\n", err)
		os.Exit(1)
	}

	if _, err := models.CreatePaymentMode(ctx, &models.NewPaymentMode{
		Name:   "Cash",
		IsCash: utils.NewTrue(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create payment mode: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreatePaymentMode(ctx, &models.NewPaymentMode{
		Name: "Bank Transfer",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create payment mode: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateBankAccount(ctx, &models.NewBankAccount{
		Name:          "Operating Account",
		AccountNumber: "0011223344",
		BankName:      "Dev Bank",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create bank account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded business %s (%s)\n", business.Name, business.ID.String())
}
