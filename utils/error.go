package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorKind classifies engine failures so the API layer can present a
// precise message and decide whether a retry makes sense.
type ErrorKind string

const (
	// transient store failure, caller should retry with backoff
	ErrorKindStoreUnavailable ErrorKind = "StoreUnavailable"
	// bounded retries used up, surface to caller
	ErrorKindExhaustedRetries ErrorKind = "ExhaustedRetries"
	// caller input errors, not retryable
	ErrorKindInvalidSequence ErrorKind = "InvalidSequence"
	ErrorKindInvalidAmount   ErrorKind = "InvalidAmount"
	// requested advance amount exceeds available credit
	ErrorKindAdvanceOverdraw ErrorKind = "AdvanceOverdraw"
	// non-cash settlement missing reference/bank linkage
	ErrorKindIncompleteSettlementData ErrorKind = "IncompleteSettlementData"
	// a configured rate has no active registry entry
	ErrorKindTaxRateNotActive ErrorKind = "TaxRateNotActive"
)

type EngineError struct {
	Kind    ErrorKind
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

func NewEngineError(kind ErrorKind, message string) error {
	return &EngineError{Kind: kind, Message: message}
}

// KindOf returns the classification of err, or "" for plain errors.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
