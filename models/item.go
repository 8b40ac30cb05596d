package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// Item is a catalog entry. The configured Cgst/Sgst/Igst percentages are
// inputs to tax resolution; the split actually applied to a line depends
// on seller/buyer jurisdiction and the active tax-rate registry.
type Item struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name        string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string          `gorm:"size:255;default:null" json:"description"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
	// IsService items default to quantity 1
	IsService *bool           `gorm:"not null;default:false" json:"is_service"`
	Cgst      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cgst"`
	Sgst      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sgst"`
	Igst      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"igst"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
	IsService   *bool           `json:"is_service"`
	Cgst        decimal.Decimal `json:"cgst"`
	Sgst        decimal.Decimal `json:"sgst"`
	Igst        decimal.Decimal `json:"igst"`
}

func (i Item) GetBusinessId() string {
	return i.BusinessId
}

func (input *NewItem) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[Item](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Cgst.IsNegative() || input.Sgst.IsNegative() || input.Igst.IsNegative() {
		return errors.New("tax rates cannot be negative")
	}
	return nil
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	isService := input.IsService
	if isService == nil {
		isService = utils.NewFalse()
	}

	item := Item{
		BusinessId:  businessId,
		Name:        input.Name,
		Description: input.Description,
		UnitRate:    input.UnitRate,
		IsService:   isService,
		Cgst:        input.Cgst,
		Sgst:        input.Sgst,
		Igst:        input.Igst,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateItem(ctx context.Context, id int, input *NewItem) (*Item, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	result, err := utils.FetchModel[Item](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Description": input.Description,
		"UnitRate":    input.UnitRate,
		"Cgst":        input.Cgst,
		"Sgst":        input.Sgst,
		"Igst":        input.Igst,
	}).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Item](id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	return GetResource[Item](ctx, id)
}

func GetItems(ctx context.Context, name *string) ([]*Item, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Item

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveItem(ctx context.Context, id int, isActive bool) (*Item, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Item](ctx, businessId, id, isActive)
}
