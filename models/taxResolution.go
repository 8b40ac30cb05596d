package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type TaxWarningKind string

const (
	// a configured rate has no active registry entry; it was dropped to 0
	TaxWarningRateNotActive TaxWarningKind = "TaxRateNotActive"
	// seller or buyer jurisdiction unknown; resolution skipped entirely
	TaxWarningJurisdictionUnknown TaxWarningKind = "JurisdictionUnknown"
)

type TaxWarning struct {
	Kind    TaxWarningKind  `json:"kind"`
	TaxKind TaxKind         `json:"tax_kind,omitempty"`
	Rate    decimal.Decimal `json:"rate"`
	Message string          `json:"message"`
}

// TaxSplit is the effective rate split applied to one line. TaxRate is
// the sum of the applied components. Warnings report every rate that was
// dropped instead of applied; callers must surface them rather than
// silently losing tax.
type TaxSplit struct {
	Cgst     decimal.Decimal `json:"cgst"`
	Sgst     decimal.Decimal `json:"sgst"`
	Igst     decimal.Decimal `json:"igst"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	TaxLabel string          `json:"tax_label"`
	Warnings []TaxWarning    `json:"warnings,omitempty"`
}

// ResolveTaxSplit decides CGST+SGST vs IGST for one line.
//
// Same seller/buyer jurisdiction (case-insensitive): CGST+SGST from the
// item, IGST forced to 0. Different: IGST from the item, falling back to
// CGST+SGST reinterpreted as IGST; CGST/SGST forced to 0. Each non-zero
// rate is only applied if an active registry entry of the matching kind
// carries that exact percentage.
//
// Missing jurisdiction on either side skips resolution entirely; no
// intra-state assumption is made.
func ResolveTaxSplit(itemCgst, itemSgst, itemIgst decimal.Decimal, sellerState, buyerState string, activeRates []*TaxRate) TaxSplit {

	var split TaxSplit

	sellerState = strings.TrimSpace(sellerState)
	buyerState = strings.TrimSpace(buyerState)
	if sellerState == "" || buyerState == "" {
		split.Warnings = append(split.Warnings, TaxWarning{
			Kind:    TaxWarningJurisdictionUnknown,
			Message: "seller or buyer jurisdiction unknown; tax not applied",
		})
		return split
	}

	if strings.EqualFold(sellerState, buyerState) {
		// intra-state: CGST + SGST
		split.Cgst = applyRegisteredRate(TaxKindCGST, itemCgst, activeRates, &split.Warnings)
		split.Sgst = applyRegisteredRate(TaxKindSGST, itemSgst, activeRates, &split.Warnings)
	} else {
		// inter-state: IGST, fall back to combined CGST+SGST
		igst := itemIgst
		if !igst.IsPositive() {
			igst = itemCgst.Add(itemSgst)
		}
		split.Igst = applyRegisteredRate(TaxKindIGST, igst, activeRates, &split.Warnings)
	}

	split.TaxRate = split.Cgst.Add(split.Sgst).Add(split.Igst)
	split.TaxLabel = taxLabel(split)
	return split
}

// applyRegisteredRate keeps rate only if an active registry entry of the
// same kind has that exact percentage; otherwise drops it to 0 and
// records a warning.
func applyRegisteredRate(kind TaxKind, rate decimal.Decimal, activeRates []*TaxRate, warnings *[]TaxWarning) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	for _, r := range activeRates {
		if r.Kind == kind && r.Rate.Equal(rate) {
			return rate
		}
	}
	*warnings = append(*warnings, TaxWarning{
		Kind:    TaxWarningRateNotActive,
		TaxKind: kind,
		Rate:    rate,
		Message: fmt.Sprintf("no active %s registry entry for %s%%; rate dropped", kind, rate.String()),
	})
	return decimal.Zero
}

func taxLabel(split TaxSplit) string {
	var parts []string
	if split.Cgst.IsPositive() {
		parts = append(parts, fmt.Sprintf("CGST (%s%%)", split.Cgst.String()))
	}
	if split.Sgst.IsPositive() {
		parts = append(parts, fmt.Sprintf("SGST (%s%%)", split.Sgst.String()))
	}
	if split.Igst.IsPositive() {
		parts = append(parts, fmt.Sprintf("IGST (%s%%)", split.Igst.String()))
	}
	return strings.Join(parts, " + ")
}

// ResolveItemTax resolves the split for a catalog item sold by this
// business to a buyer in buyerState, validating against the active
// registry.
func ResolveItemTax(ctx context.Context, item *Item, buyerState string) (TaxSplit, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return TaxSplit{}, err
	}
	activeRates, err := GetActiveTaxRates(ctx)
	if err != nil {
		return TaxSplit{}, err
	}
	return ResolveTaxSplit(item.Cgst, item.Sgst, item.Igst, business.State, buyerState, activeRates), nil
}

// ResolvePurchaseItemTax resolves the split for an item bought from a
// vendor; the vendor is the selling side.
func ResolvePurchaseItemTax(ctx context.Context, item *Item, vendorState string) (TaxSplit, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return TaxSplit{}, err
	}
	activeRates, err := GetActiveTaxRates(ctx)
	if err != nil {
		return TaxSplit{}, err
	}
	return ResolveTaxSplit(item.Cgst, item.Sgst, item.Igst, vendorState, business.State, activeRates), nil
}
