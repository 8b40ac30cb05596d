package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// PurchaseInvoice is a vendor bill. The vendor is the selling side for
// tax resolution.
type PurchaseInvoice struct {
	ID                            int                     `gorm:"primary_key" json:"id"`
	BusinessId                    string                  `gorm:"index;not null" json:"business_id" binding:"required"`
	VendorId                      int                     `gorm:"index;not null" json:"vendor_id" binding:"required"`
	SequenceNo                    int64                   `gorm:"not null" json:"sequence_no"`
	InvoiceNumber                 string                  `gorm:"size:255;not null" json:"invoice_number"`
	VendorInvoiceNumber           string                  `gorm:"size:255;default:null" json:"vendor_invoice_number"`
	InvoiceDate                   time.Time               `gorm:"not null" json:"invoice_date" binding:"required"`
	Notes                         string                  `gorm:"type:text;default:null" json:"notes"`
	Details                       []PurchaseInvoiceDetail `gorm:"foreignKey:PurchaseInvoiceId" json:"details"`
	InvoiceSubtotal               decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	InvoiceTotalDiscountAmount    decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_discount_amount"`
	InvoiceTotalTaxAmount         decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_tax_amount"`
	InvoiceTotalAmount            decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	InvoiceTotalPaidAmount        decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_paid_amount"`
	InvoiceTotalAdvanceUsedAmount decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_advance_used_amount"`
	RemainingBalance              decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	CurrentStatus                 PurchaseInvoiceStatus   `gorm:"type:enum('Draft', 'Confirmed', 'Void', 'Partial Paid', 'Paid');not null" json:"current_status"`
	CreatedAt                     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	ItemId            int             `gorm:"index" json:"item_id"`
	Name              string          `gorm:"size:100" json:"name" binding:"required"`
	DetailQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	DetailDiscount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_discount"`
	Cgst              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cgst"`
	Sgst              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sgst"`
	Igst              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"igst"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	TaxLabel          string          `gorm:"size:100" json:"tax_label"`
	DetailAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_amount"`
	DetailTaxAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_tax_amount"`
	DetailTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d PurchaseInvoiceDetail) lineQuantity() decimal.Decimal        { return d.DetailQty }
func (d PurchaseInvoiceDetail) lineDiscountPerUnit() decimal.Decimal { return d.DetailDiscount }
func (d PurchaseInvoiceDetail) lineAmount() decimal.Decimal          { return d.DetailAmount }
func (d PurchaseInvoiceDetail) lineTaxAmount() decimal.Decimal       { return d.DetailTaxAmount }

type NewPurchaseInvoice struct {
	VendorId            int                        `json:"vendor_id" binding:"required"`
	VendorInvoiceNumber string                     `json:"vendor_invoice_number"`
	InvoiceDate         time.Time                  `json:"invoice_date" binding:"required"`
	Notes               string                     `json:"notes"`
	Details             []NewPurchaseInvoiceDetail `json:"details" binding:"required"`
}

type NewPurchaseInvoiceDetail struct {
	ItemId         int              `json:"item_id" binding:"required"`
	DetailQty      decimal.Decimal  `json:"detail_qty"`
	DetailUnitRate *decimal.Decimal `json:"detail_unit_rate"`
	DetailDiscount decimal.Decimal  `json:"detail_discount"`
	DiscountType   DiscountType     `json:"discount_type"`
}

func (pi PurchaseInvoice) GetBusinessId() string {
	return pi.BusinessId
}

func (input NewPurchaseInvoice) validate(ctx context.Context, businessId string) error {
	// exists vendor
	if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		return errors.New("vendor not found")
	}
	if len(input.Details) == 0 {
		return errors.New("at least one line item is required")
	}
	return nil
}

func mapPurchaseInvoiceDetails(ctx context.Context, inputs []NewPurchaseInvoiceDetail, vendorState string) ([]PurchaseInvoiceDetail, []TaxWarning, error) {

	var details []PurchaseInvoiceDetail
	var warnings []TaxWarning

	for _, detailInput := range inputs {
		item, err := GetItem(ctx, detailInput.ItemId)
		if err != nil {
			return nil, nil, errors.New("item not found")
		}

		split, err := ResolvePurchaseItemTax(ctx, item, vendorState)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, split.Warnings...)

		unitRate := item.UnitRate
		if detailInput.DetailUnitRate != nil {
			unitRate = *detailInput.DetailUnitRate
		}
		qty := detailInput.DetailQty
		if qty.IsZero() && item.IsService != nil && *item.IsService {
			qty = decimal.NewFromInt(1)
		}

		discountType := detailInput.DiscountType
		if discountType == "" {
			discountType = DiscountTypeAmount
		}
		discountPerUnit := utils.CalculateDiscountAmount(unitRate, detailInput.DetailDiscount, string(discountType))

		amounts := CalculateLineAmounts(qty, unitRate, discountPerUnit, split.TaxRate)

		details = append(details, PurchaseInvoiceDetail{
			ItemId:            item.ID,
			Name:              item.Name,
			DetailQty:         qty,
			DetailUnitRate:    unitRate,
			DetailDiscount:    discountPerUnit,
			Cgst:              split.Cgst,
			Sgst:              split.Sgst,
			Igst:              split.Igst,
			TaxRate:           split.TaxRate,
			TaxLabel:          split.TaxLabel,
			DetailAmount:      amounts.Amount,
			DetailTaxAmount:   amounts.TaxAmount,
			DetailTotalAmount: amounts.Total,
		})
	}

	return details, warnings, nil
}

func CreatePurchaseInvoice(ctx context.Context, input *NewPurchaseInvoice) (*PurchaseInvoice, []TaxWarning, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, nil, err
	}

	vendor, err := GetVendor(ctx, input.VendorId)
	if err != nil {
		return nil, nil, errors.New("vendor not found")
	}

	details, warnings, err := mapPurchaseInvoiceDetails(ctx, input.Details, vendor.State)
	if err != nil {
		return nil, nil, err
	}
	totals := AggregateDocument(details)

	invoiceNumber, err := NextNumber(ctx, DocumentTypePurchaseInvoice, PrefixPurchaseInvoice)
	if err != nil {
		return nil, nil, err
	}
	seqNo, err := sequenceFromNumber(invoiceNumber)
	if err != nil {
		return nil, nil, err
	}

	purchaseInvoice := PurchaseInvoice{
		BusinessId:                 businessId,
		VendorId:                   input.VendorId,
		SequenceNo:                 seqNo,
		InvoiceNumber:              invoiceNumber,
		VendorInvoiceNumber:        input.VendorInvoiceNumber,
		InvoiceDate:                input.InvoiceDate,
		Notes:                      input.Notes,
		Details:                    details,
		InvoiceSubtotal:            totals.Subtotal,
		InvoiceTotalDiscountAmount: totals.TotalDiscount,
		InvoiceTotalTaxAmount:      totals.TaxAmount,
		InvoiceTotalAmount:         totals.GrandTotal,
		RemainingBalance:           totals.GrandTotal,
		CurrentStatus:              PurchaseInvoiceStatusConfirmed,
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&purchaseInvoice).Error; err != nil {
		return nil, nil, err
	}

	return &purchaseInvoice, warnings, nil
}

func GetPurchaseInvoice(ctx context.Context, id int) (*PurchaseInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[PurchaseInvoice](ctx, businessId, id, "Details")
}

func GetPurchaseInvoices(ctx context.Context, vendorId *int, invoiceNumber *string, status *PurchaseInvoiceStatus) ([]*PurchaseInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*PurchaseInvoice

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if invoiceNumber != nil && len(*invoiceNumber) > 0 {
		dbCtx = dbCtx.Where("invoice_number LIKE ?", "%"+*invoiceNumber+"%")
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	// db query
	if err := dbCtx.Order("invoice_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// VoidPurchaseInvoice voids a bill no money has been applied to.
func VoidPurchaseInvoice(ctx context.Context, id int) (*PurchaseInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[PurchaseInvoice](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if result.InvoiceTotalPaidAmount.IsPositive() || result.InvoiceTotalAdvanceUsedAmount.IsPositive() {
		return nil, errors.New("cannot void a bill with settlements applied")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"CurrentStatus": PurchaseInvoiceStatusVoid,
	}).Error; err != nil {
		return nil, err
	}
	return result, nil
}
