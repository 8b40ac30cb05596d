package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesInvoice struct {
	ID                            int                  `gorm:"primary_key" json:"id"`
	BusinessId                    string               `gorm:"index;not null" json:"business_id" binding:"required"`
	ClientId                      int                  `gorm:"index;not null" json:"client_id" binding:"required"`
	SequenceNo                    int64                `gorm:"not null" json:"sequence_no"`
	InvoiceNumber                 string               `gorm:"size:255;not null" json:"invoice_number" binding:"required"`
	ReferenceNumber               string               `gorm:"size:255;default:null" json:"reference_number"`
	InvoiceDate                   time.Time            `gorm:"not null" json:"invoice_date" binding:"required"`
	Notes                         string               `gorm:"type:text;default:null" json:"notes"`
	Details                       []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	InvoiceSubtotal               decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	InvoiceTotalDiscountAmount    decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_discount_amount"`
	InvoiceTotalTaxAmount         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_tax_amount"`
	InvoiceTotalAmount            decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	InvoiceTotalPaidAmount        decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_paid_amount"`
	InvoiceTotalAdvanceUsedAmount decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_advance_used_amount"`
	RemainingBalance              decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	CurrentStatus                 SalesInvoiceStatus   `gorm:"type:enum('Draft', 'Confirmed', 'Void', 'Partial Paid', 'Paid');not null" json:"current_status"`
	CreatedAt                     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId    int             `gorm:"index;not null" json:"sales_invoice_id"`
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

func (d SalesInvoiceDetail) lineQuantity() decimal.Decimal        { return d.DetailQty }
func (d SalesInvoiceDetail) lineDiscountPerUnit() decimal.Decimal { return d.DetailDiscount }
func (d SalesInvoiceDetail) lineAmount() decimal.Decimal          { return d.DetailAmount }
func (d SalesInvoiceDetail) lineTaxAmount() decimal.Decimal       { return d.DetailTaxAmount }

type NewSalesInvoice struct {
	ClientId        int                     `json:"client_id" binding:"required"`
	ReferenceNumber string                  `json:"reference_number"`
	InvoiceDate     time.Time               `json:"invoice_date" binding:"required"`
	Notes           string                  `json:"notes"`
	Details         []NewSalesInvoiceDetail `json:"details" binding:"required"`
}

// DetailDiscount is per unit: a flat amount for DiscountTypeAmount
// (the default) or a percentage of the unit rate for
// DiscountTypePercent.
type NewSalesInvoiceDetail struct {
	ItemId         int              `json:"item_id" binding:"required"`
	DetailQty      decimal.Decimal  `json:"detail_qty"`
	DetailUnitRate *decimal.Decimal `json:"detail_unit_rate"`
	DetailDiscount decimal.Decimal  `json:"detail_discount"`
	DiscountType   DiscountType     `json:"discount_type"`
}

func (si SalesInvoice) GetBusinessId() string {
	return si.BusinessId
}

func (input NewSalesInvoice) validate(ctx context.Context, businessId string) error {
	// exists client
	if err := utils.ValidateResourceId[Client](ctx, businessId, input.ClientId); err != nil {
		return errors.New("client not found")
	}
	if len(input.Details) == 0 {
		return errors.New("at least one line item is required")
	}
	return nil
}

// build detail rows: fetch each item, resolve the jurisdiction tax
// split, compute the line amounts
func mapSalesInvoiceDetails(ctx context.Context, inputs []NewSalesInvoiceDetail, buyerState string) ([]SalesInvoiceDetail, []TaxWarning, error) {

	var details []SalesInvoiceDetail
	var warnings []TaxWarning

	for _, detailInput := range inputs {
		item, err := GetItem(ctx, detailInput.ItemId)
		if err != nil {
			return nil, nil, errors.New("item not found")
		}

		split, err := ResolveItemTax(ctx, item, buyerState)
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

		details = append(details, SalesInvoiceDetail{
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

// CreateSalesInvoice computes line amounts and totals, allocates the
// invoice number and persists the document. TaxWarnings from resolution
// are returned alongside so the caller can surface degraded rates.
func CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice) (*SalesInvoice, []TaxWarning, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, nil, err
	}

	client, err := GetClient(ctx, input.ClientId)
	if err != nil {
		return nil, nil, errors.New("client not found")
	}

	details, warnings, err := mapSalesInvoiceDetails(ctx, input.Details, client.State)
	if err != nil {
		return nil, nil, err
	}
	totals := AggregateDocument(details)

	invoiceNumber, err := NextNumber(ctx, DocumentTypeSalesInvoice, PrefixSalesInvoice)
	if err != nil {
		return nil, nil, err
	}
	seqNo, err := sequenceFromNumber(invoiceNumber)
	if err != nil {
		return nil, nil, err
	}

	salesInvoice := SalesInvoice{
		BusinessId:                 businessId,
		ClientId:                   input.ClientId,
		SequenceNo:                 seqNo,
		InvoiceNumber:              invoiceNumber,
		ReferenceNumber:            input.ReferenceNumber,
		InvoiceDate:                input.InvoiceDate,
		Notes:                      input.Notes,
		Details:                    details,
		InvoiceSubtotal:            totals.Subtotal,
		InvoiceTotalDiscountAmount: totals.TotalDiscount,
		InvoiceTotalTaxAmount:      totals.TaxAmount,
		InvoiceTotalAmount:         totals.GrandTotal,
		RemainingBalance:           totals.GrandTotal,
		CurrentStatus:              SalesInvoiceStatusConfirmed,
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&salesInvoice).Error; err != nil {
		return nil, nil, err
	}

	return &salesInvoice, warnings, nil
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[SalesInvoice](ctx, businessId, id, "Details")
}

func GetSalesInvoices(ctx context.Context, clientId *int, invoiceNumber *string, status *SalesInvoiceStatus) ([]*SalesInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*SalesInvoice

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if clientId != nil && *clientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientId)
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

// VoidSalesInvoice voids an invoice no money has been applied to.
func VoidSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[SalesInvoice](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if result.InvoiceTotalPaidAmount.IsPositive() || result.InvoiceTotalAdvanceUsedAmount.IsPositive() {
		return nil, errors.New("cannot void an invoice with settlements applied")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"CurrentStatus": SalesInvoiceStatusVoid,
	}).Error; err != nil {
		return nil, err
	}
	return result, nil
}
