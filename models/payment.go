package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment records money paid out to a vendor, the purchase-side mirror
// of Receipt. Advance payments hold a consumable BalanceAmount.
type Payment struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	BusinessId            string          `gorm:"index;not null" json:"business_id" binding:"required"`
	VendorId              int             `gorm:"index;not null" json:"vendor_id" binding:"required"`
	SequenceNo            int64           `gorm:"not null" json:"sequence_no"`
	PaymentNumber         string          `gorm:"size:255;not null" json:"payment_number"`
	PaymentDate           time.Time       `gorm:"not null" json:"payment_date" binding:"required"`
	PaymentType           PaymentType     `gorm:"type:enum('Full', 'Partial', 'Advance');not null" json:"payment_type"`
	PaymentModeId         int             `gorm:"index" json:"payment_mode_id"`
	DepositAccountId      int             `gorm:"index" json:"deposit_account_id"`
	ReferenceNumber       string          `gorm:"size:255;default:null" json:"reference_number"`
	PurchaseInvoiceId     *int            `gorm:"index" json:"purchase_invoice_id"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	BalanceAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	LastConsumedInvoiceId *int            `gorm:"index" json:"last_consumed_invoice_id"`
	Notes                 string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	VendorId          int             `json:"vendor_id" binding:"required"`
	PaymentDate       time.Time       `json:"payment_date" binding:"required"`
	PaymentType       PaymentType     `json:"payment_type" binding:"required"`
	PaymentModeId     int             `json:"payment_mode_id"`
	DepositAccountId  int             `json:"deposit_account_id"`
	ReferenceNumber   string          `json:"reference_number"`
	PurchaseInvoiceId *int            `json:"purchase_invoice_id"`
	Amount            decimal.Decimal `json:"amount"`
	Notes             string          `json:"notes"`
	IdempotencyKey    string          `json:"idempotency_key"`
}

func (p Payment) GetBusinessId() string {
	return p.BusinessId
}

func (input *NewPayment) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		return errors.New("vendor not found")
	}
	if !input.Amount.IsPositive() {
		return utils.NewEngineError(utils.ErrorKindInvalidAmount, "payment amount must be positive")
	}
	switch input.PaymentType {
	case PaymentTypeAdvance:
		if input.PurchaseInvoiceId != nil {
			return errors.New("advance payments are not tied to a bill")
		}
	case PaymentTypeFull, PaymentTypePartial:
		if input.PurchaseInvoiceId == nil || *input.PurchaseInvoiceId <= 0 {
			return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "bill is required for a full or partial payment")
		}
	default:
		return errors.New("unknown payment type")
	}
	return nil
}

// paymentOutcome mirrors receiptOutcome for the purchase side.
type paymentOutcome struct {
	Payment    *Payment          `json:"payment"`
	Settlement *SettlementResult `json:"settlement"`
}

// CreatePayment allocates the payment number, persists the payment and,
// for Full/Partial, applies it against the bill in the same transaction.
// An IdempotencyKey makes the submission safely repeatable.
func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, *SettlementResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, nil, err
	}

	const handler = "CreatePayment"
	if input.IdempotencyKey != "" {
		outcome, done, err := claimIdempotency(ctx, businessId, handler, input.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if done {
			var replayed paymentOutcome
			if err := json.Unmarshal(outcome, &replayed); err != nil {
				return nil, nil, err
			}
			if replayed.Settlement != nil {
				replayed.Settlement.Replayed = true
			}
			return replayed.Payment, replayed.Settlement, nil
		}
	}

	payment, settlement, err := createPaymentOnce(ctx, businessId, input)
	if input.IdempotencyKey != "" {
		finishIdempotency(ctx, businessId, handler, input.IdempotencyKey,
			&paymentOutcome{Payment: payment, Settlement: settlement}, err)
	}
	if err != nil {
		return nil, nil, err
	}
	return payment, settlement, nil
}

func createPaymentOnce(ctx context.Context, businessId string, input *NewPayment) (*Payment, *SettlementResult, error) {

	paymentNumber, err := NextNumber(ctx, DocumentTypePayment, PrefixPayment)
	if err != nil {
		return nil, nil, err
	}
	seqNo, err := sequenceFromNumber(paymentNumber)
	if err != nil {
		return nil, nil, err
	}

	payment := Payment{
		BusinessId:        businessId,
		VendorId:          input.VendorId,
		SequenceNo:        seqNo,
		PaymentNumber:     paymentNumber,
		PaymentDate:       input.PaymentDate,
		PaymentType:       input.PaymentType,
		PaymentModeId:     input.PaymentModeId,
		DepositAccountId:  input.DepositAccountId,
		ReferenceNumber:   input.ReferenceNumber,
		PurchaseInvoiceId: input.PurchaseInvoiceId,
		Amount:            input.Amount,
		Notes:             input.Notes,
	}
	if input.PaymentType == PaymentTypeAdvance {
		payment.BalanceAmount = input.Amount
	}

	db := config.GetDB()
	var settlement *SettlementResult
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settleInput := &NewSettlement{
			PaymentModeId:    input.PaymentModeId,
			DepositAccountId: input.DepositAccountId,
			ReferenceNumber:  input.ReferenceNumber,
			Amount:           input.Amount,
		}
		if err := checkPaymentInstrument(ctx, tx, businessId, settleInput); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		if input.PaymentType != PaymentTypeAdvance {
			settleInput.InvoiceId = *input.PurchaseInvoiceId
			var txErr error
			settlement, txErr = settlePurchaseInvoiceTx(ctx, tx, businessId, settleInput)
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &payment, settlement, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Payment](ctx, businessId, id)
}

func GetPayments(ctx context.Context, vendorId *int, paymentType *PaymentType) ([]*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Payment

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if paymentType != nil && *paymentType != "" {
		dbCtx = dbCtx.Where("payment_type = ?", *paymentType)
	}
	// db query
	if err := dbCtx.Order("payment_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOpenAdvancePayments lists a vendor's advances with credit left.
func GetOpenAdvancePayments(ctx context.Context, vendorId int) ([]*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).
		Where("business_id = ? AND vendor_id = ? AND payment_type = ? AND balance_amount > 0",
			businessId, vendorId, PaymentTypeAdvance).
		Order("payment_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
