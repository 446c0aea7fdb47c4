package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger operations. Validation errors are rejected
// before any mutation; invariant errors abandon the whole unit of work.
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrSameEnvelope            = errors.New("cannot transfer to the same envelope")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrEmptySplits             = errors.New("at least one split is required")
	ErrMissingEnvelope         = errors.New("split references a missing envelope")
	ErrPlanAlreadyApplied      = errors.New("allocation plan already applied")
	ErrPlanRejected            = errors.New("allocation plan was rejected")
	ErrOverPayment             = errors.New("payment components exceed total payment")
	ErrCycleClosed             = errors.New("billing cycle is closed")
	ErrDuplicateReconciliation = errors.New("income transaction already reconciled")
	ErrEnvelopeOverdraft       = errors.New("envelope balance would go negative")
)

// SplitMismatchError reports a split set whose sum differs from the
// transaction amount by more than one cent.
type SplitMismatchError struct {
	Expected Money
	Actual   Money
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("splits sum to %s but transaction amount is %s", e.Actual, e.Expected)
}

// IsConflict reports whether err is one of the invariant-violation errors
// that map to a conflict for the caller (retrying without changing state
// will fail again).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrPlanAlreadyApplied) ||
		errors.Is(err, ErrPlanRejected) ||
		errors.Is(err, ErrCycleClosed) ||
		errors.Is(err, ErrDuplicateReconciliation) ||
		errors.Is(err, ErrOverPayment) ||
		errors.Is(err, ErrEnvelopeOverdraft)
}

// IsValidation reports whether err is a caller-correctable input error.
func IsValidation(err error) bool {
	var mismatch *SplitMismatchError
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSameEnvelope) ||
		errors.Is(err, ErrEmptySplits) ||
		errors.Is(err, ErrMissingEnvelope) ||
		errors.As(err, &mismatch)
}
