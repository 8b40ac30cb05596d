package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
)

// TaxRate is a registry entry. A configured item rate is only applied to
// a line while a matching entry of the same kind is active.
type TaxRate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Kind       TaxKind         `gorm:"type:enum('CGST','SGST','IGST');not null" json:"kind" binding:"required"`
	Rate       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate" binding:"required"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxRate struct {
	Kind TaxKind         `json:"kind" binding:"required"`
	Rate decimal.Decimal `json:"rate" binding:"required"`
}

func (t TaxRate) GetBusinessId() string {
	return t.BusinessId
}

func activeTaxRatesCacheKey(businessId string) string {
	return "ActiveTaxRateList:" + businessId
}

func clearActiveTaxRatesCache(businessId string) error {
	return config.RemoveRedisKey(activeTaxRatesCacheKey(businessId))
}

// validate input for both create & update. (id = 0 for create)

func (input *NewTaxRate) validate(ctx context.Context, businessId string, id int) error {
	switch input.Kind {
	case TaxKindCGST, TaxKindSGST, TaxKindIGST:
	default:
		return errors.New("invalid tax kind")
	}
	if input.Rate.IsNegative() {
		return errors.New("rate cannot be negative")
	}
	return nil
}

func CreateTaxRate(ctx context.Context, input *NewTaxRate) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	taxRate := TaxRate{
		BusinessId: businessId,
		Kind:       input.Kind,
		Rate:       input.Rate,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&taxRate).Error; err != nil {
		return nil, err
	}

	if err := clearActiveTaxRatesCache(businessId); err != nil {
		return nil, err
	}
	return &taxRate, nil
}

func UpdateTaxRate(ctx context.Context, id int, input *NewTaxRate) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	result, err := utils.FetchModel[TaxRate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"Kind": input.Kind,
		"Rate": input.Rate,
	}).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[TaxRate](id); err != nil {
		return nil, err
	}
	if err := clearActiveTaxRatesCache(businessId); err != nil {
		return nil, err
	}

	return result, nil
}

func DeleteTaxRate(ctx context.Context, id int) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// check exists
	result, err := utils.FetchModel[TaxRate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Delete(&result).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[TaxRate](id); err != nil {
		return nil, err
	}
	if err := clearActiveTaxRatesCache(businessId); err != nil {
		return nil, err
	}

	return result, nil
}

func GetTaxRate(ctx context.Context, id int) (*TaxRate, error) {
	return GetResource[TaxRate](ctx, id)
}

func GetTaxRates(ctx context.Context, kind *TaxKind) ([]*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*TaxRate

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if kind != nil && *kind != "" {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	// db query
	if err := dbCtx.Order("kind, rate").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetActiveTaxRates returns the active registry entries, redis or db,
// cache result. The cache is cleared whenever a rate is created, updated,
// deleted or toggled.
func GetActiveTaxRates(ctx context.Context) ([]*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*TaxRate
	exists, err := config.GetRedisObject(activeTaxRatesCacheKey(businessId), &results)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		// db query
		if err := db.WithContext(ctx).
			Where("business_id = ? AND is_active = ?", businessId, true).
			Order("kind, rate").Find(&results).Error; err != nil {
			return nil, err
		}
		// caching
		if err := config.SetRedisObject(activeTaxRatesCacheKey(businessId), &results, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}

	return results, nil
}

func ToggleActiveTaxRate(ctx context.Context, id int, isActive bool) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := ToggleActiveModel[TaxRate](ctx, businessId, id, isActive)
	if err != nil {
		return nil, err
	}
	if err := clearActiveTaxRatesCache(businessId); err != nil {
		return nil, err
	}
	return result, nil
}
