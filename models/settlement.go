package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var settlementValidate = validator.New()

// NewSettlement applies money against one invoice: a direct payment
// amount, an advance draw-down, or both. IdempotencyKey makes the
// submission safely repeatable.
type NewSettlement struct {
	InvoiceId        int             `json:"invoice_id" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentModeId    int             `json:"payment_mode_id"`
	DepositAccountId int             `json:"deposit_account_id"`
	ReferenceNumber  string          `json:"reference_number"`
	AdvanceReceiptId int             `json:"advance_receipt_id"`
	AdvanceAmount    decimal.Decimal `json:"advance_amount"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

type SettlementResult struct {
	InvoiceId      int             `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	AppliedAmount  decimal.Decimal `json:"applied_amount"`
	AdvanceApplied decimal.Decimal `json:"advance_applied"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	NewStatus      string          `json:"new_status"`
	Replayed       bool            `json:"replayed,omitempty"`
}

// planSettlement is the pure balance transition. newBalance is the
// remaining balance minus everything applied; the status moves
// Confirmed -> Partial Paid -> Paid and never backwards.
func planSettlement(remainingBalance, payment, advance decimal.Decimal) (decimal.Decimal, error) {

	if payment.IsNegative() || advance.IsNegative() {
		return decimal.Zero, utils.NewEngineError(utils.ErrorKindInvalidAmount, "settlement amounts must not be negative")
	}
	applied := payment.Add(advance)
	if !applied.IsPositive() {
		return decimal.Zero, utils.NewEngineError(utils.ErrorKindInvalidAmount, "nothing to apply")
	}
	if !remainingBalance.IsPositive() {
		return decimal.Zero, utils.NewEngineError(utils.ErrorKindInvalidAmount, "invoice has no remaining balance")
	}
	if applied.GreaterThan(remainingBalance) {
		return decimal.Zero, utils.NewEngineError(utils.ErrorKindInvalidAmount, "applied amount exceeds remaining balance")
	}
	return remainingBalance.Sub(applied), nil
}

func settledStatus(newBalance decimal.Decimal) SalesInvoiceStatus {
	if newBalance.IsPositive() {
		return SalesInvoiceStatusPartialPaid
	}
	return SalesInvoiceStatusPaid
}

// checkPaymentInstrument enforces the non-cash rule: reference number
// and deposit account are mandatory unless the mode is cash.
func checkPaymentInstrument(ctx context.Context, tx *gorm.DB, businessId string, input *NewSettlement) error {

	if !input.Amount.IsPositive() {
		return nil
	}
	if input.PaymentModeId <= 0 {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "payment mode is required")
	}

	var mode PaymentMode
	if err := tx.WithContext(ctx).Where("business_id = ?", businessId).
		First(&mode, input.PaymentModeId).Error; err != nil {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "payment mode not found")
	}

	if mode.IsCash != nil && *mode.IsCash {
		return nil
	}
	if input.ReferenceNumber == "" {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "reference number is required for non-cash settlement")
	}
	if input.DepositAccountId <= 0 {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "deposit account is required for non-cash settlement")
	}
	var account BankAccount
	if err := tx.WithContext(ctx).Where("business_id = ?", businessId).
		First(&account, input.DepositAccountId).Error; err != nil {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "deposit account not found")
	}
	return nil
}

// consumeAdvance draws input.AdvanceAmount from the advance receipt
// under a row lock so concurrent settlements cannot overdraw it.
func consumeAdvance(ctx context.Context, tx *gorm.DB, businessId string, input *NewSettlement, invoiceId int) error {

	if !input.AdvanceAmount.IsPositive() {
		return nil
	}
	if input.AdvanceReceiptId <= 0 {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "advance receipt is required to apply an advance")
	}

	var advance Receipt
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&advance, input.AdvanceReceiptId).Error; err != nil {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "advance receipt not found")
	}
	if advance.PaymentType != PaymentTypeAdvance {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "receipt is not an advance")
	}
	if advance.BalanceAmount.LessThan(input.AdvanceAmount) {
		return utils.NewEngineError(utils.ErrorKindAdvanceOverdraw, "advance balance "+advance.BalanceAmount.String()+" is less than requested "+input.AdvanceAmount.String())
	}

	advance.BalanceAmount = advance.BalanceAmount.Sub(input.AdvanceAmount)
	advance.LastConsumedInvoiceId = &invoiceId
	if err := tx.WithContext(ctx).Save(&advance).Error; err != nil {
		return err
	}
	return nil
}

// settleSalesInvoiceTx applies one settlement inside the caller's
// transaction. The invoice row is locked for the duration so balance
// and status move atomically.
func settleSalesInvoiceTx(ctx context.Context, tx *gorm.DB, businessId string, input *NewSettlement) (*SettlementResult, error) {

	var invoice SalesInvoice
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&invoice, input.InvoiceId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	switch invoice.CurrentStatus {
	case SalesInvoiceStatusConfirmed, SalesInvoiceStatusPartialPaid:
	default:
		return nil, utils.NewEngineError(utils.ErrorKindInvalidAmount, "invoice status "+string(invoice.CurrentStatus)+" cannot be settled")
	}

	if err := checkPaymentInstrument(ctx, tx, businessId, input); err != nil {
		return nil, err
	}
	if err := consumeAdvance(ctx, tx, businessId, input, invoice.ID); err != nil {
		return nil, err
	}

	newBalance, err := planSettlement(invoice.RemainingBalance, input.Amount, input.AdvanceAmount)
	if err != nil {
		return nil, err
	}

	invoice.InvoiceTotalPaidAmount = invoice.InvoiceTotalPaidAmount.Add(input.Amount)
	invoice.InvoiceTotalAdvanceUsedAmount = invoice.InvoiceTotalAdvanceUsedAmount.Add(input.AdvanceAmount)
	invoice.RemainingBalance = newBalance
	invoice.CurrentStatus = settledStatus(newBalance)

	if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
		return nil, err
	}

	return &SettlementResult{
		InvoiceId:      invoice.ID,
		InvoiceNumber:  invoice.InvoiceNumber,
		AppliedAmount:  input.Amount,
		AdvanceApplied: input.AdvanceAmount,
		NewBalance:     newBalance,
		NewStatus:      string(invoice.CurrentStatus),
	}, nil
}

// SettleSalesInvoice is the public entrypoint: idempotency claim,
// one transaction for the whole application, outcome recorded for
// replay.
func SettleSalesInvoice(ctx context.Context, input *NewSettlement) (*SettlementResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := settlementValidate.Struct(input); err != nil {
		return nil, err
	}

	const handler = "SettleSalesInvoice"
	if input.IdempotencyKey != "" {
		outcome, done, err := claimIdempotency(ctx, businessId, handler, input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if done {
			var replayed SettlementResult
			if err := json.Unmarshal(outcome, &replayed); err != nil {
				return nil, err
			}
			replayed.Replayed = true
			return &replayed, nil
		}
	}

	db := config.GetDB()
	var result *SettlementResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = settleSalesInvoiceTx(ctx, tx, businessId, input)
		return txErr
	})

	if input.IdempotencyKey != "" {
		finishIdempotency(ctx, businessId, handler, input.IdempotencyKey, result, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettlePurchaseInvoice mirrors SettleSalesInvoice for vendor bills,
// drawing advances from advance payments instead of receipts.
func SettlePurchaseInvoice(ctx context.Context, input *NewSettlement) (*SettlementResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := settlementValidate.Struct(input); err != nil {
		return nil, err
	}

	const handler = "SettlePurchaseInvoice"
	if input.IdempotencyKey != "" {
		outcome, done, err := claimIdempotency(ctx, businessId, handler, input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if done {
			var replayed SettlementResult
			if err := json.Unmarshal(outcome, &replayed); err != nil {
				return nil, err
			}
			replayed.Replayed = true
			return &replayed, nil
		}
	}

	db := config.GetDB()
	var result *SettlementResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = settlePurchaseInvoiceTx(ctx, tx, businessId, input)
		return txErr
	})

	if input.IdempotencyKey != "" {
		finishIdempotency(ctx, businessId, handler, input.IdempotencyKey, result, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func consumeAdvancePayment(ctx context.Context, tx *gorm.DB, businessId string, input *NewSettlement, invoiceId int) error {

	if !input.AdvanceAmount.IsPositive() {
		return nil
	}
	if input.AdvanceReceiptId <= 0 {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "advance payment is required to apply an advance")
	}

	var advance Payment
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&advance, input.AdvanceReceiptId).Error; err != nil {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "advance payment not found")
	}
	if advance.PaymentType != PaymentTypeAdvance {
		return utils.NewEngineError(utils.ErrorKindIncompleteSettlementData, "payment is not an advance")
	}
	if advance.BalanceAmount.LessThan(input.AdvanceAmount) {
		return utils.NewEngineError(utils.ErrorKindAdvanceOverdraw, "advance balance "+advance.BalanceAmount.String()+" is less than requested "+input.AdvanceAmount.String())
	}

	advance.BalanceAmount = advance.BalanceAmount.Sub(input.AdvanceAmount)
	advance.LastConsumedInvoiceId = &invoiceId
	if err := tx.WithContext(ctx).Save(&advance).Error; err != nil {
		return err
	}
	return nil
}

func settlePurchaseInvoiceTx(ctx context.Context, tx *gorm.DB, businessId string, input *NewSettlement) (*SettlementResult, error) {

	var invoice PurchaseInvoice
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&invoice, input.InvoiceId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	switch invoice.CurrentStatus {
	case PurchaseInvoiceStatusConfirmed, PurchaseInvoiceStatusPartialPaid:
	default:
		return nil, utils.NewEngineError(utils.ErrorKindInvalidAmount, "bill status "+string(invoice.CurrentStatus)+" cannot be settled")
	}

	if err := checkPaymentInstrument(ctx, tx, businessId, input); err != nil {
		return nil, err
	}
	if err := consumeAdvancePayment(ctx, tx, businessId, input, invoice.ID); err != nil {
		return nil, err
	}

	newBalance, err := planSettlement(invoice.RemainingBalance, input.Amount, input.AdvanceAmount)
	if err != nil {
		return nil, err
	}

	invoice.InvoiceTotalPaidAmount = invoice.InvoiceTotalPaidAmount.Add(input.Amount)
	invoice.InvoiceTotalAdvanceUsedAmount = invoice.InvoiceTotalAdvanceUsedAmount.Add(input.AdvanceAmount)
	invoice.RemainingBalance = newBalance
	if newBalance.IsPositive() {
		invoice.CurrentStatus = PurchaseInvoiceStatusPartialPaid
	} else {
		invoice.CurrentStatus = PurchaseInvoiceStatusPaid
	}

	if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
		return nil, err
	}

	return &SettlementResult{
		InvoiceId:      invoice.ID,
		InvoiceNumber:  invoice.InvoiceNumber,
		AppliedAmount:  input.Amount,
		AdvanceApplied: input.AdvanceAmount,
		NewBalance:     newBalance,
		NewStatus:      string(invoice.CurrentStatus),
	}, nil
}

/* idempotency */

// a STARTED row older than this is assumed abandoned (crash between
// claim and finish) and may be reclaimed
const startedReclaimAge = 10 * time.Minute

// claimIdempotency inserts a STARTED row for the token. A duplicate key
// means a previous submission exists: SUCCEEDED replays its stored
// outcome, STARTED is still in flight (unless stale), FAILED is
// reclaimed for retry.
func claimIdempotency(ctx context.Context, businessId, handler, token string) ([]byte, bool, error) {

	db := config.GetDB()
	row := IdempotencyKey{
		BusinessId:  businessId,
		HandlerName: handler,
		MessageId:   token,
		Status:      IdempotencyStatusStarted,
	}
	err := db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return nil, false, nil
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != 1062 {
		return nil, false, utils.NewEngineError(utils.ErrorKindStoreUnavailable, "idempotency store unavailable: "+err.Error())
	}

	var existing IdempotencyKey
	if err := db.WithContext(ctx).
		Where("business_id = ? AND handler_name = ? AND message_id = ?", businessId, handler, token).
		First(&existing).Error; err != nil {
		return nil, false, utils.NewEngineError(utils.ErrorKindStoreUnavailable, "idempotency store unavailable: "+err.Error())
	}

	switch existing.Status {
	case IdempotencyStatusSucceeded:
		return existing.Outcome, true, nil
	case IdempotencyStatusStarted:
		if time.Since(existing.UpdatedAt) < startedReclaimAge {
			return nil, false, errors.New("submission with this idempotency key is already in progress")
		}
		// stale claim from a crashed attempt; reclaim it
		return nil, false, reclaimIdempotency(ctx, &existing)
	default:
		// FAILED: reclaim for retry
		return nil, false, reclaimIdempotency(ctx, &existing)
	}
}

func reclaimIdempotency(ctx context.Context, existing *IdempotencyKey) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"Status":    IdempotencyStatusStarted,
		"LastError": nil,
		"UpdatedAt": time.Now(),
	}).Error; err != nil {
		return utils.NewEngineError(utils.ErrorKindStoreUnavailable, "idempotency store unavailable: "+err.Error())
	}
	return nil
}

// finishIdempotency records the outcome. Best effort: a failure to
// record is logged, the guarded operation itself already committed or
// rolled back.
func finishIdempotency(ctx context.Context, businessId, handler, token string, result any, opErr error) {

	db := config.GetDB()
	logger := config.GetLogger()

	updates := map[string]interface{}{"UpdatedAt": time.Now()}
	if opErr != nil {
		msg := opErr.Error()
		updates["Status"] = IdempotencyStatusFailed
		updates["LastError"] = &msg
	} else {
		outcome, err := json.Marshal(result)
		if err != nil {
			config.LogError(logger, "settlement.go", "finishIdempotency", "marshal outcome", token, err)
			return
		}
		updates["Status"] = IdempotencyStatusSucceeded
		updates["Outcome"] = outcome
	}

	if err := db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("business_id = ? AND handler_name = ? AND message_id = ?", businessId, handler, token).
		Updates(updates).Error; err != nil {
		config.LogError(logger, "settlement.go", "finishIdempotency", "record outcome", token, err)
	}
}
