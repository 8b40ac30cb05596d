package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
)

// BankAccount is the deposit/withdrawal account a non-cash settlement
// must be linked to.
type BankAccount struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	BankName      string    `gorm:"size:100" json:"bank_name"`
	AccountNumber string    `gorm:"size:50" json:"account_number"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankAccount struct {
	Name          string `json:"name" binding:"required"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
}

func (b BankAccount) GetBusinessId() string {
	return b.BusinessId
}

func (input *NewBankAccount) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[BankAccount](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateBankAccount(ctx context.Context, input *NewBankAccount) (*BankAccount, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	account := BankAccount{
		BusinessId:    businessId,
		Name:          input.Name,
		BankName:      input.BankName,
		AccountNumber: input.AccountNumber,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func GetBankAccount(ctx context.Context, id int) (*BankAccount, error) {
	return GetResource[BankAccount](ctx, id)
}

func GetBankAccounts(ctx context.Context) ([]*BankAccount, error) {
	return ListAllResource[BankAccount](ctx, "name")
}

func ToggleActiveBankAccount(ctx context.Context, id int, isActive bool) (*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[BankAccount](ctx, businessId, id, isActive)
}
