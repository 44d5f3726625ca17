package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrCreditNotFound         = errors.New("credit not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidLoanTerms       = errors.New("invalid loan terms")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMissingRejectionReason = errors.New("rejection reason is required")
	ErrScheduleMismatch       = errors.New("schedule does not reconcile to principal")
	ErrConcurrentModification = errors.New("credit was modified concurrently")
	ErrPaymentReversed        = errors.New("payment is already reversed")
	ErrForbidden              = errors.New("operation not allowed for caller role")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeCreditNotFound         = "CREDIT_NOT_FOUND"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidLoanTerms       = "INVALID_LOAN_TERMS"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeMissingRejectionReason = "MISSING_REJECTION_REASON"
	ErrCodeScheduleMismatch       = "SCHEDULE_MISMATCH"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodePaymentReversed        = "PAYMENT_REVERSED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodePersistenceError       = "PERSISTENCE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
	ErrCodeOverflow               = "AMOUNT_OVERFLOW"
)

// Wrap common errors with business context

func WrapCreditNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeCreditNotFound,
		fmt.Sprintf("credit %s not found", id),
		ErrCreditNotFound,
	)
}

func WrapPaymentNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("payment %s not found", id),
		ErrPaymentNotFound,
	)
}

// WrapInvalidLoanTerms flags a field that failed term validation before any
// installment was built.
func WrapInvalidLoanTerms(field, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		fmt.Sprintf("%s: %s", field, reason),
		ErrInvalidLoanTerms,
	)
}

func WrapInvalidStateTransition(from, operation string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStateTransition,
		fmt.Sprintf("operation %s is not allowed in state %s", operation, from),
		ErrInvalidStateTransition,
	)
}

func WrapMissingRejectionReason() *BusinessError {
	return NewBusinessError(
		ErrCodeMissingRejectionReason,
		"motivo_rechazo must not be empty",
		ErrMissingRejectionReason,
	)
}

func WrapScheduleMismatch(expected, got int64) *BusinessError {
	return NewBusinessError(
		ErrCodeScheduleMismatch,
		fmt.Sprintf("installment capital sums to %d, disbursed principal is %d", got, expected),
		ErrScheduleMismatch,
	)
}

func WrapConcurrentModification(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("credit %s version mismatch, retry the operation", id),
		ErrConcurrentModification,
	)
}

func WrapPaymentReversed(id string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentReversed,
		fmt.Sprintf("payment %s is already reversed", id),
		ErrPaymentReversed,
	)
}

func WrapForbidden(role, operation string) *BusinessError {
	return NewBusinessError(
		ErrCodeForbidden,
		fmt.Sprintf("role %s may not perform %s", role, operation),
		ErrForbidden,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePersistenceError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"cache operation failed",
		err,
	)
}

func WrapOverflow(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeOverflow,
		"amount arithmetic overflowed",
		err,
	)
}

// CodeOf extracts the business error code, defaulting to PERSISTENCE_ERROR
// for untyped errors so nothing leaks to callers unclassified.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodePersistenceError
}
