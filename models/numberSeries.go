package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// TransactionCounter is the per-tenant sequence counter for one document
// type. Sequence is monotonically non-decreasing within a financial year
// and resets to 1 exactly once when the financial year label changes.
// Rows are created lazily on first allocation and never deleted; the
// only writer is the conditional upsert in NextNumber.
type TransactionCounter struct {
	ID            int          `gorm:"primary_key" json:"id"`
	BusinessId    string       `gorm:"size:64;not null;index:uniq_counter,unique" json:"business_id" binding:"required"`
	DocumentType  DocumentType `gorm:"size:20;not null;index:uniq_counter,unique" json:"document_type" binding:"required"`
	Prefix        string       `gorm:"size:10;not null" json:"prefix"`
	Sequence      int64        `gorm:"not null;default:0" json:"sequence"`
	FinancialYear int          `gorm:"not null" json:"financial_year"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// FinancialYearLabel names the April-to-March accounting year after the
// calendar year it closes in.
func FinancialYearLabel(t time.Time) int {
	if t.Month() >= time.April {
		return t.Year() + 1
	}
	return t.Year()
}

// FormatDocumentNumber renders the canonical display number,
// e.g. PAY-2025-007.
func FormatDocumentNumber(prefix string, financialYear int, sequence int64) (string, error) {
	if sequence <= 0 {
		return "", utils.NewEngineError(utils.ErrorKindInvalidSequence, fmt.Sprintf("invalid sequence %d", sequence))
	}
	return fmt.Sprintf("%s-%d-%03d", prefix, financialYear, sequence), nil
}

// NextNumber allocates the next display number for documentType. The
// read-decide-write is one server-side upsert: the row is inserted at
// sequence 1, incremented in place while the stored financial year
// matches, and reset to 1 when it does not. LAST_INSERT_ID carries the
// allocated value back on the same connection, so two concurrent callers
// can never observe the same sequence.
func NextNumber(ctx context.Context, documentType DocumentType, prefix string) (string, error) {
	return NextNumberAt(ctx, documentType, prefix, time.Now())
}

// NextNumberAt allocates against the financial year that `at` falls in.
// Backdated documents and the April rollover both go through here.
func NextNumberAt(ctx context.Context, documentType DocumentType, prefix string, at time.Time) (string, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}

	financialYear := FinancialYearLabel(at)
	db := config.GetDB()
	logger := config.GetLogger()

	var seq int64
	// conflict is retried once, transparently
	const maxAttempts = 2
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := db.Connection(func(conn *gorm.DB) error {
			if err := conn.WithContext(ctx).Exec(
				`INSERT INTO transaction_counters
					(business_id, document_type, prefix, sequence, financial_year, created_at, updated_at)
				VALUES (?, ?, ?, LAST_INSERT_ID(1), ?, NOW(), NOW())
				ON DUPLICATE KEY UPDATE
					sequence = LAST_INSERT_ID(IF(financial_year = VALUES(financial_year), sequence + 1, 1)),
					financial_year = VALUES(financial_year),
					prefix = VALUES(prefix),
					updated_at = NOW()`,
				businessId, documentType, prefix, financialYear,
			).Error; err != nil {
				return err
			}
			return conn.WithContext(ctx).Raw(`SELECT LAST_INSERT_ID()`).Scan(&seq).Error
		})
		if err == nil {
			return FormatDocumentNumber(prefix, financialYear, seq)
		}
		lastErr = err
		if !isRetryableCounterError(err) {
			config.LogError(logger, "numberSeries.go", "NextNumber", "counter upsert", documentType, err)
			return "", utils.NewEngineError(utils.ErrorKindStoreUnavailable, "counter store unavailable: "+err.Error())
		}
	}

	config.LogError(logger, "numberSeries.go", "NextNumber", "retries exhausted", documentType, lastErr)
	return "", utils.NewEngineError(utils.ErrorKindExhaustedRetries, "counter conflict not resolved after retry: "+lastErr.Error())
}

// sequenceFromNumber recovers the sequence from a formatted display
// number (last dash-separated segment).
func sequenceFromNumber(number string) (int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, utils.NewEngineError(utils.ErrorKindInvalidSequence, "malformed document number "+number)
	}
	seq, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || seq <= 0 {
		return 0, utils.NewEngineError(utils.ErrorKindInvalidSequence, "malformed document number "+number)
	}
	return seq, nil
}

// deadlock / lock wait timeout; safe to retry because the upsert either
// fully applied or did not
func isRetryableCounterError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

// PeekNextNumber computes what the next allocation would return without
// mutating state. It is a UI preview, never a reservation: peeking any
// number of times and then calling NextNumber still yields one real
// allocation.
func PeekNextNumber(ctx context.Context, documentType DocumentType, prefix string) (string, error) {
	return PeekNextNumberAt(ctx, documentType, prefix, time.Now())
}

// PeekNextNumberAt previews the allocation for the financial year that
// `at` falls in.
func PeekNextNumberAt(ctx context.Context, documentType DocumentType, prefix string, at time.Time) (string, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}

	financialYear := FinancialYearLabel(at)
	db := config.GetDB()

	var counter TransactionCounter
	err := db.WithContext(ctx).
		Where("business_id = ? AND document_type = ?", businessId, documentType).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// lazily created on first NextNumber; preview starts at 1
			return FormatDocumentNumber(prefix, financialYear, 1)
		}
		return "", utils.NewEngineError(utils.ErrorKindStoreUnavailable, "counter store unavailable: "+err.Error())
	}

	next := counter.Sequence + 1
	if counter.FinancialYear != financialYear {
		// new year event resets the sequence
		next = 1
	}
	return FormatDocumentNumber(prefix, financialYear, next)
}
