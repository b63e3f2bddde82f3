package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidSchedule     = errors.New("invalid schedule parameters")
	ErrPaymentConflict     = errors.New("installment is already paid")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyExists   = errors.New("loan already exists")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrChatMessageNotFound = errors.New("chat message not found")
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
	ErrCodeInvalidSchedule     = "INVALID_SCHEDULE"
	ErrCodePaymentConflict     = "PAYMENT_CONFLICT"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists   = "LOAN_ALREADY_EXISTS"
	ErrCodeInstallmentNotFound = "INSTALLMENT_NOT_FOUND"
	ErrCodeChatMessageNotFound = "CHAT_MESSAGE_NOT_FOUND"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeCacheError          = "CACHE_ERROR"
)

// Wrap common errors with business context

func WrapInvalidSchedule(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidSchedule,
		reason,
		ErrInvalidSchedule,
	)
}

func WrapPaymentConflict(loanID string, sequence int) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentConflict,
		fmt.Sprintf("Installment %d of loan %s is already paid", sequence, loanID),
		ErrPaymentConflict,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapInstallmentNotFound(loanID string, sequence int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment %d of loan %s not found", sequence, loanID),
		ErrInstallmentNotFound,
	)
}

func WrapChatMessageNotFound(chatID, messageID string) *BusinessError {
	return NewBusinessError(
		ErrCodeChatMessageNotFound,
		fmt.Sprintf("Message %s not found in chat %s", messageID, chatID),
		ErrChatMessageNotFound,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
