package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failed operation. Codes are stable strings surfaced
// to API clients.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeForbidden          Code = "forbidden"
	CodeInvalidState       Code = "invalid_state"
	CodeExpired            Code = "expired"
	CodeInsufficientCredit Code = "insufficient_credit"
	CodeValidation         Code = "validation_error"
	CodeInternal           Code = "internal_error"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Predefined errors for common cases.
var (
	ErrTransactionNotFound = New(CodeNotFound, "transaction not found")
	ErrOfferNotFound       = New(CodeNotFound, "offer not found")
	ErrMessageNotFound     = New(CodeNotFound, "message not found")
	ErrUserNotFound        = New(CodeNotFound, "user not found")
	ErrNotParticipant      = New(CodeForbidden, "not a participant in this transaction")
	ErrTransactionExpired  = New(CodeExpired, "transaction has expired")
	ErrInsufficientCredit  = New(CodeInsufficientCredit, "insufficient credit")
)
