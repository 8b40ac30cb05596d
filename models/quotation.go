package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// Quotation is a priced offer to a client. Quotations carry no balance
// and are never settled; an accepted quotation is re-entered as a sales
// invoice.
type Quotation struct {
	ID                           int               `gorm:"primary_key" json:"id"`
	BusinessId                   string            `gorm:"index;not null" json:"business_id" binding:"required"`
	ClientId                     int               `gorm:"index;not null" json:"client_id" binding:"required"`
	SequenceNo                   int64             `gorm:"not null" json:"sequence_no"`
	QuotationNumber              string            `gorm:"size:255;not null" json:"quotation_number"`
	QuotationDate                time.Time         `gorm:"not null" json:"quotation_date" binding:"required"`
	ExpiryDate                   *time.Time        `json:"expiry_date"`
	Notes                        string            `gorm:"type:text;default:null" json:"notes"`
	Details                      []QuotationDetail `gorm:"foreignKey:QuotationId" json:"details"`
	QuotationSubtotal            decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quotation_subtotal"`
	QuotationTotalDiscountAmount decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quotation_total_discount_amount"`
	QuotationTotalTaxAmount      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quotation_total_tax_amount"`
	QuotationTotalAmount         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quotation_total_amount"`
	CurrentStatus                QuotationStatus   `gorm:"type:enum('Draft', 'Sent', 'Accepted', 'Declined');not null" json:"current_status"`
	CreatedAt                    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuotationDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	QuotationId       int             `gorm:"index;not null" json:"quotation_id"`
	ItemId            int             `gorm:"index" json:"item_id"`
	Name              string          `gorm:"size:100" json:"name" binding:"required"`
	DetailQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
	DetailDiscount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_discount"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	TaxLabel          string          `gorm:"size:100" json:"tax_label"`
	DetailAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_amount"`
	DetailTaxAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_tax_amount"`
	DetailTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d QuotationDetail) lineQuantity() decimal.Decimal        { return d.DetailQty }
func (d QuotationDetail) lineDiscountPerUnit() decimal.Decimal { return d.DetailDiscount }
func (d QuotationDetail) lineAmount() decimal.Decimal          { return d.DetailAmount }
func (d QuotationDetail) lineTaxAmount() decimal.Decimal       { return d.DetailTaxAmount }

type NewQuotation struct {
	ClientId      int                     `json:"client_id" binding:"required"`
	QuotationDate time.Time               `json:"quotation_date" binding:"required"`
	ExpiryDate    *time.Time              `json:"expiry_date"`
	Notes         string                  `json:"notes"`
	Details       []NewSalesInvoiceDetail `json:"details" binding:"required"`
}

func (q Quotation) GetBusinessId() string {
	return q.BusinessId
}

func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, []TaxWarning, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	if err := utils.ValidateResourceId[Client](ctx, businessId, input.ClientId); err != nil {
		return nil, nil, errors.New("client not found")
	}
	if len(input.Details) == 0 {
		return nil, nil, errors.New("at least one line item is required")
	}

	client, err := GetClient(ctx, input.ClientId)
	if err != nil {
		return nil, nil, errors.New("client not found")
	}

	lines, warnings, err := mapSalesInvoiceDetails(ctx, input.Details, client.State)
	if err != nil {
		return nil, nil, err
	}
	totals := AggregateDocument(lines)

	details := make([]QuotationDetail, 0, len(lines))
	for _, line := range lines {
		details = append(details, QuotationDetail{
			ItemId:            line.ItemId,
			Name:              line.Name,
			DetailQty:         line.DetailQty,
			DetailUnitRate:    line.DetailUnitRate,
			DetailDiscount:    line.DetailDiscount,
			TaxRate:           line.TaxRate,
			TaxLabel:          line.TaxLabel,
			DetailAmount:      line.DetailAmount,
			DetailTaxAmount:   line.DetailTaxAmount,
			DetailTotalAmount: line.DetailTotalAmount,
		})
	}

	quotationNumber, err := NextNumber(ctx, DocumentTypeQuotation, PrefixQuotation)
	if err != nil {
		return nil, nil, err
	}
	seqNo, err := sequenceFromNumber(quotationNumber)
	if err != nil {
		return nil, nil, err
	}

	quotation := Quotation{
		BusinessId:                   businessId,
		ClientId:                     input.ClientId,
		SequenceNo:                   seqNo,
		QuotationNumber:              quotationNumber,
		QuotationDate:                input.QuotationDate,
		ExpiryDate:                   input.ExpiryDate,
		Notes:                        input.Notes,
		Details:                      details,
		QuotationSubtotal:            totals.Subtotal,
		QuotationTotalDiscountAmount: totals.TotalDiscount,
		QuotationTotalTaxAmount:      totals.TaxAmount,
		QuotationTotalAmount:         totals.GrandTotal,
		CurrentStatus:                QuotationStatusDraft,
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&quotation).Error; err != nil {
		return nil, nil, err
	}

	return &quotation, warnings, nil
}

func GetQuotation(ctx context.Context, id int) (*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Quotation](ctx, businessId, id, "Details")
}

func GetQuotations(ctx context.Context, clientId *int, status *QuotationStatus) ([]*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Quotation

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if clientId != nil && *clientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	// db query
	if err := dbCtx.Order("quotation_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateQuotationStatus moves a quotation along Draft -> Sent ->
// Accepted/Declined.
func UpdateQuotationStatus(ctx context.Context, id int, status QuotationStatus) (*Quotation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Quotation](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case QuotationStatusSent, QuotationStatusAccepted, QuotationStatusDeclined:
	default:
		return nil, errors.New("unknown quotation status")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"CurrentStatus": status,
	}).Error; err != nil {
		return nil, err
	}
	return result, nil
}
