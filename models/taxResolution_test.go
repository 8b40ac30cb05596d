package models_test

import (
	"testing"

	"bitbucket.org/thitsarsoft/billing_backend/models"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

func gstRegistry() []*models.TaxRate {
	nine := decimal.NewFromInt(9)
	eighteen := decimal.NewFromInt(18)
	return []*models.TaxRate{
		{Kind: models.TaxKindCGST, Rate: nine, IsActive: utils.NewTrue()},
		{Kind: models.TaxKindSGST, Rate: nine, IsActive: utils.NewTrue()},
		{Kind: models.TaxKindIGST, Rate: eighteen, IsActive: utils.NewTrue()},
	}
}

func TestResolveTaxSplitIntraState(t *testing.T) {
	nine := decimal.NewFromInt(9)
	eighteen := decimal.NewFromInt(18)

	split := models.ResolveTaxSplit(nine, nine, eighteen, "Karnataka", "Karnataka", gstRegistry())

	if !split.Cgst.Equal(nine) || !split.Sgst.Equal(nine) {
		t.Fatalf("expected CGST 9 + SGST 9; got %s + %s", split.Cgst, split.Sgst)
	}
	if !split.Igst.IsZero() {
		t.Fatalf("IGST must be zero intra-state; got %s", split.Igst)
	}
	if !split.TaxRate.Equal(eighteen) {
		t.Fatalf("expected effective rate 18; got %s", split.TaxRate)
	}
	if split.TaxLabel != "CGST (9%) + SGST (9%)" {
		t.Fatalf("unexpected label %q", split.TaxLabel)
	}
	if len(split.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", split.Warnings)
	}
}

func TestResolveTaxSplitIntraStateIsCaseInsensitive(t *testing.T) {
	nine := decimal.NewFromInt(9)
	split := models.ResolveTaxSplit(nine, nine, decimal.NewFromInt(18), "karnataka", "KARNATAKA", gstRegistry())
	if !split.Igst.IsZero() {
		t.Fatalf("expected intra-state resolution; got IGST %s", split.Igst)
	}
	if !split.TaxRate.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("expected effective rate 18; got %s", split.TaxRate)
	}
}

func TestResolveTaxSplitInterState(t *testing.T) {
	nine := decimal.NewFromInt(9)
	eighteen := decimal.NewFromInt(18)

	split := models.ResolveTaxSplit(nine, nine, eighteen, "Karnataka", "Maharashtra", gstRegistry())

	if !split.Cgst.IsZero() || !split.Sgst.IsZero() {
		t.Fatalf("CGST/SGST must be zero inter-state; got %s / %s", split.Cgst, split.Sgst)
	}
	if !split.Igst.Equal(eighteen) {
		t.Fatalf("expected IGST 18; got %s", split.Igst)
	}
	if split.TaxLabel != "IGST (18%)" {
		t.Fatalf("unexpected label %q", split.TaxLabel)
	}
}

func TestResolveTaxSplitInterStateFallsBackToCombinedRate(t *testing.T) {
	nine := decimal.NewFromInt(9)

	// item has no IGST configured; 9+9 is reinterpreted as IGST 18
	split := models.ResolveTaxSplit(nine, nine, decimal.Zero, "Karnataka", "Maharashtra", gstRegistry())

	if !split.Igst.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("expected fallback IGST 18; got %s", split.Igst)
	}
}

func TestResolveTaxSplitDroppedRateWarns(t *testing.T) {
	nine := decimal.NewFromInt(9)

	// registry has no SGST entry: the SGST component must be dropped to
	// zero with a warning, never silently
	registry := []*models.TaxRate{
		{Kind: models.TaxKindCGST, Rate: nine, IsActive: utils.NewTrue()},
	}
	split := models.ResolveTaxSplit(nine, nine, decimal.Zero, "Karnataka", "Karnataka", registry)

	if !split.Cgst.Equal(nine) {
		t.Fatalf("expected CGST 9; got %s", split.Cgst)
	}
	if !split.Sgst.IsZero() {
		t.Fatalf("expected SGST dropped to zero; got %s", split.Sgst)
	}
	if len(split.Warnings) != 1 {
		t.Fatalf("expected 1 warning; got %+v", split.Warnings)
	}
	w := split.Warnings[0]
	if w.Kind != models.TaxWarningRateNotActive || w.TaxKind != models.TaxKindSGST {
		t.Fatalf("unexpected warning %+v", w)
	}
}

func TestResolveTaxSplitUnknownJurisdictionSkipsResolution(t *testing.T) {
	nine := decimal.NewFromInt(9)

	split := models.ResolveTaxSplit(nine, nine, decimal.NewFromInt(18), "", "Karnataka", gstRegistry())

	if !split.TaxRate.IsZero() {
		t.Fatalf("expected zero rate without jurisdiction; got %s", split.TaxRate)
	}
	if len(split.Warnings) != 1 || split.Warnings[0].Kind != models.TaxWarningJurisdictionUnknown {
		t.Fatalf("expected JurisdictionUnknown warning; got %+v", split.Warnings)
	}
}
