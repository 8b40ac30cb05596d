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

// Receipt records money received from a client. Full/Partial receipts
// settle one sales invoice in the same transaction that creates them.
// Advance receipts carry a BalanceAmount consumed by later settlements.
type Receipt struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	BusinessId            string          `gorm:"index;not null" json:"business_id" binding:"required"`
	ClientId              int             `gorm:"index;not null" json:"client_id" binding:"required"`
	SequenceNo            int64           `gorm:"not null" json:"sequence_no"`
	ReceiptNumber         string          `gorm:"size:255;not null" json:"receipt_number"`
	ReceiptDate           time.Time       `gorm:"not null" json:"receipt_date" binding:"required"`
	PaymentType           PaymentType     `gorm:"type:enum('Full', 'Partial', 'Advance');not null" json:"payment_type"`
	PaymentModeId         int             `gorm:"index" json:"payment_mode_id"`
	DepositAccountId      int             `gorm:"index" json:"deposit_account_id"`
	ReferenceNumber       string          `gorm:"size:255;default:null" json:"reference_number"`
	SalesInvoiceId        *int            `gorm:"index" json:"sales_invoice_id"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	BalanceAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	LastConsumedInvoiceId *int            `gorm:"index" json:"last_consumed_invoice_id"`
	Notes                 string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReceipt struct {
	ClientId         int             `json:"client_id" binding:"required"`
	ReceiptDate      time.Time       `json:"receipt_date" binding:"required"`
	PaymentType      PaymentType     `json:"payment_type" binding:"required"`
	PaymentModeId    int             `json:"payment_mode_id"`
	DepositAccountId int             `json:"deposit_account_id"`
	ReferenceNumber  string          `json:"reference_number"`
	SalesInvoiceId   *int            `json:"sales_invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	Notes            string          `json:"notes"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func (r Receipt) GetBusinessId() string {
	return r.BusinessId
}

func (input *NewReceipt) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateResourceId[Client](ctx, businessId, input.ClientId); err != nil {
		return errors.New("client not found")
	}
	if !input.Amount.IsPositive() {
		return utils.NewEngineError(utils.ErrorKindInvalidAmount, "receipt amount must be positive")
	}
	switch input.PaymentType {
	case PaymentTypeAdvance:
		if input.SalesInvoiceId != nil {
			return errors.New("advance receipts are not tied to an invoice")
		}
	case PaymentTypeFull, PaymentTypePartial:
		if input.SalesInvoiceId == nil || *input.SalesInvoiceId <= 0 {
			return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "invoice is required for a full or partial receipt")
		}
	default:
		return errors.New("unknown payment type")
	}
	return nil
}

// receiptOutcome is what the idempotency ledger stores for a receipt
// submission, so a retry replays the receipt and its settlement.
type receiptOutcome struct {
	Receipt    *Receipt          `json:"receipt"`
	Settlement *SettlementResult `json:"settlement"`
}

// CreateReceipt allocates the receipt number, persists the receipt and,
// for Full/Partial, applies it against the invoice in the same
// transaction. The advance balance of an Advance receipt starts at the
// full amount. An IdempotencyKey makes the submission safely
// repeatable: a retry returns the original receipt instead of
// allocating a second number.
func CreateReceipt(ctx context.Context, input *NewReceipt) (*Receipt, *SettlementResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, nil, err
	}

	const handler = "CreateReceipt"
	if input.IdempotencyKey != "" {
		outcome, done, err := claimIdempotency(ctx, businessId, handler, input.IdempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if done {
			var replayed receiptOutcome
			if err := json.Unmarshal(outcome, &replayed); err != nil {
				return nil, nil, err
			}
			if replayed.Settlement != nil {
				replayed.Settlement.Replayed = true
			}
			return replayed.Receipt, replayed.Settlement, nil
		}
	}

	receipt, settlement, err := createReceiptOnce(ctx, businessId, input)
	if input.IdempotencyKey != "" {
		finishIdempotency(ctx, businessId, handler, input.IdempotencyKey,
			&receiptOutcome{Receipt: receipt, Settlement: settlement}, err)
	}
	if err != nil {
		return nil, nil, err
	}
	return receipt, settlement, nil
}

func createReceiptOnce(ctx context.Context, businessId string, input *NewReceipt) (*Receipt, *SettlementResult, error) {

	receiptNumber, err := NextNumber(ctx, DocumentTypeReceipt, PrefixReceipt)
	if err != nil {
		return nil, nil, err
	}
	seqNo, err := sequenceFromNumber(receiptNumber)
	if err != nil {
		return nil, nil, err
	}

	receipt := Receipt{
		BusinessId:       businessId,
		ClientId:         input.ClientId,
		SequenceNo:       seqNo,
		ReceiptNumber:    receiptNumber,
		ReceiptDate:      input.ReceiptDate,
		PaymentType:      input.PaymentType,
		PaymentModeId:    input.PaymentModeId,
		DepositAccountId: input.DepositAccountId,
		ReferenceNumber:  input.ReferenceNumber,
		SalesInvoiceId:   input.SalesInvoiceId,
		Amount:           input.Amount,
		Notes:            input.Notes,
	}
	if input.PaymentType == PaymentTypeAdvance {
		receipt.BalanceAmount = input.Amount
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

		if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
			return err
		}

		if input.PaymentType != PaymentTypeAdvance {
			settleInput.InvoiceId = *input.SalesInvoiceId
			var txErr error
			settlement, txErr = settleSalesInvoiceTx(ctx, tx, businessId, settleInput)
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &receipt, settlement, nil
}

func GetReceipt(ctx context.Context, id int) (*Receipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Receipt](ctx, businessId, id)
}

func GetReceipts(ctx context.Context, clientId *int, paymentType *PaymentType) ([]*Receipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Receipt

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if clientId != nil && *clientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientId)
	}
	if paymentType != nil && *paymentType != "" {
		dbCtx = dbCtx.Where("payment_type = ?", *paymentType)
	}
	// db query
	if err := dbCtx.Order("receipt_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOpenAdvanceReceipts lists a client's advances with credit left.
func GetOpenAdvanceReceipts(ctx context.Context, clientId int) ([]*Receipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Receipt
	err := db.WithContext(ctx).
		Where("business_id = ? AND client_id = ? AND payment_type = ? AND balance_amount > 0",
			businessId, clientId, PaymentTypeAdvance).
		Order("receipt_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
