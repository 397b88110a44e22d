package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a classified submission or validation error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes surfaced at the service boundary. Callers never see raw
// transport errors; everything is classified into one of these before
// leaving the core.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeLocalRejection     = "LOCAL_REJECTION"
	ErrCodeUnconfirmed        = "UNCONFIRMED_SUBMISSION"
	ErrCodeDuplicateRequest   = "DUPLICATE_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

func NewInvalidInputError(msg string, err error) *DomainError {
	return &DomainError{Code: ErrCodeInvalidInput, Message: msg, Err: err}
}

func NewServiceUnavailableError() *DomainError {
	return &DomainError{
		Code:    ErrCodeServiceUnavailable,
		Message: "no connection to the ledger network",
	}
}

func NewLocalRejectionError(engineResult, msg string) *DomainError {
	return &DomainError{
		Code:    ErrCodeLocalRejection,
		Message: fmt.Sprintf("transaction rejected by the network (%s): %s", engineResult, msg),
	}
}

// NewUnconfirmedError reports retry exhaustion without a definitive
// network acknowledgment. The transaction may still apply; callers must
// resolve the identifier through the notification path before
// resubmitting under a new one.
func NewUnconfirmedError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnconfirmed,
		Message: "submission could not be confirmed; the transaction may or may not have been received",
		Err:     err,
	}
}

func NewNotFoundError(identifier string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no record found for identifier %s", identifier),
	}
}

func NewInvalidTransitionError(from, to SubmissionState) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewInternalError(err error) *DomainError {
	return &DomainError{Code: ErrCodeInternal, Message: "internal error", Err: err}
}

// IsErrorCode reports whether err is a DomainError carrying code.
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
