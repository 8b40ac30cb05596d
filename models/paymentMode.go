package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
)

// PaymentMode is how money moved (cash, bank transfer, cheque, ...).
// Non-cash modes require a reference number and a bank account on
// settlement.
type PaymentMode struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsCash     *bool     `gorm:"not null;default:false" json:"is_cash"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentMode struct {
	Name   string `json:"name" binding:"required"`
	IsCash *bool  `json:"is_cash"`
}

func (p PaymentMode) GetBusinessId() string {
	return p.BusinessId
}

func (input *NewPaymentMode) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[PaymentMode](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreatePaymentMode(ctx context.Context, input *NewPaymentMode) (*PaymentMode, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	isCash := input.IsCash
	if isCash == nil {
		isCash = utils.NewFalse()
	}

	mode := PaymentMode{
		BusinessId: businessId,
		Name:       input.Name,
		IsCash:     isCash,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&mode).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisList[PaymentMode](businessId); err != nil {
		return nil, err
	}
	return &mode, nil
}

func GetPaymentMode(ctx context.Context, id int) (*PaymentMode, error) {
	return GetResource[PaymentMode](ctx, id)
}

func GetPaymentModes(ctx context.Context) ([]*PaymentMode, error) {
	return ListAllResource[PaymentMode](ctx, "name")
}

func ToggleActivePaymentMode(ctx context.Context, id int, isActive bool) (*PaymentMode, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[PaymentMode](ctx, businessId, id, isActive)
}
