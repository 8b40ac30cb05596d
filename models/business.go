package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business is the tenant (company profile). State is the seller
// jurisdiction used by tax resolution.
type Business struct {
	ID        uuid.UUID `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	Country   string    `gorm:"size:100" json:"country"`
	State     string    `gorm:"size:100" json:"state"`
	TaxId     string    `gorm:"size:100" json:"tax_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Country string `json:"country"`
	State   string `json:"state"`
	TaxId   string `json:"tax_id"`
}

func (b *Business) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+b.ID.String(), &b, 0)
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	business := Business{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		Country: input.Country,
		State:   input.State,
		TaxId:   input.TaxId,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func UpdateBusiness(ctx context.Context, id string, input *NewBusiness) (*Business, error) {

	result, err := GetBusinessById(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   input.Phone,
		"Address": input.Address,
		"Country": input.Country,
		"State":   input.State,
		"TaxId":   input.TaxId,
	}).Error; err != nil {
		return nil, err
	}

	// jurisdiction may have changed; drop the cached profile
	if err := config.RemoveRedisKey("Business:" + id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}
