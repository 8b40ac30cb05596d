package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
)

// Client is the buyer on the sales side. State is the buyer jurisdiction
// used by tax resolution.
type Client struct {
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

type NewClient struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	State   string `json:"state"`
	TaxId   string `json:"tax_id"`
}

func (c Client) GetBusinessId() string {
	return c.BusinessId
}

// validate input for both create & update. (id = 0 for create)

func (input *NewClient) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[Client](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	client := Client{
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
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	result, err := utils.FetchModel[Client](ctx, businessId, id)
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

	if err := utils.RemoveRedisItem[Client](id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	return GetResource[Client](ctx, id)
}

func GetClients(ctx context.Context, name *string) ([]*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Client

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

func ToggleActiveClient(ctx context.Context, id int, isActive bool) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Client](ctx, businessId, id, isActive)
}
