package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
)

// Vendor is the seller on the purchase side. State is the counterparty
// jurisdiction used by tax resolution for purchase invoices.
type Vendor struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:255" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Address    string    `gorm:"type:text" json:"address"`
	State      string    `gorm:"size:100" json:"state"`
	TaxId      string    `gorm:"size:100" json:"tax_id"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	State   string `json:"state"`
	TaxId   string `json:"tax_id"`
}

func (v Vendor) GetBusinessId() string {
	return v.BusinessId
}

func (input *NewVendor) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[Vendor](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	vendor := Vendor{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		State:      input.State,
		TaxId:      input.TaxId,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewVendor) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	result, err := utils.FetchModel[Vendor](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   input.Phone,
		"Address": input.Address,
		"State":   input.State,
		"TaxId":   input.TaxId,
	}).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Vendor](id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return GetResource[Vendor](ctx, id)
}

func GetVendors(ctx context.Context, name *string) ([]*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Vendor

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

func ToggleActiveVendor(ctx context.Context, id int, isActive bool) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Vendor](ctx, businessId, id, isActive)
}
