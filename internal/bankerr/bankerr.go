// Package bankerr defines the closed error taxonomy surfaced to channels.
// Components report in their own class; the posting engine composes them
// unchanged.
package bankerr

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code.
type Code string

// Authorisation class
const (
	CodeCardUnknown     Code = "CARD_UNKNOWN"
	CodeCardBlocked     Code = "CARD_BLOCKED"
	CodeCardExpired     Code = "CARD_EXPIRED"
	CodePinInvalid      Code = "PIN_INVALID"
	CodeAccountInactive Code = "ACCOUNT_INACTIVE"
	CodeAccountUnknown  Code = "ACCOUNT_UNKNOWN"
)

// Business class
const (
	CodeAmountInvalid               Code = "AMOUNT_INVALID"
	CodeInsufficientFunds           Code = "INSUFFICIENT_FUNDS"
	CodeDailyLimitExceeded          Code = "DAILY_LIMIT_EXCEEDED"
	CodePerTransactionLimitExceeded Code = "PER_TRANSACTION_LIMIT_EXCEEDED"
	CodeUnknownProcessingCode       Code = "UNKNOWN_PROCESSING_CODE"
)

// Protocol class (ISO-8583)
const (
	CodeMtiInvalid            Code = "MTI_INVALID"
	CodeBitmapInconsistent    Code = "BITMAP_INCONSISTENT"
	CodeFieldLengthInvalid    Code = "FIELD_LENGTH_INVALID"
	CodeFieldValueInvalid     Code = "FIELD_VALUE_INVALID"
	CodeMandatoryFieldMissing Code = "MANDATORY_FIELD_MISSING"
	CodeMacInvalid            Code = "MAC_INVALID"
)

// Infrastructure class
const (
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeDeadlockDetected    Code = "DEADLOCK_DETECTED"
	CodeTimeout             Code = "TIMEOUT"
	CodeSystemUnavailable   Code = "SYSTEM_UNAVAILABLE"
	CodeConstraintViolated  Code = "CONSTRAINT_VIOLATED"
	CodeNotFound            Code = "NOT_FOUND"
)

// Error carries a taxonomy code, a channel-safe message and an optional
// wrapped cause. Field is the ISO-8583 field index for protocol errors
// (0 means the MTI).
type Error struct {
	Code    Code
	Message string
	Field   int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so errors.Is(err, bankerr.New(code, "")) works across
// wrapped chains.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New returns a taxonomy error with a channel-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause. The cause is for logs only and never shown to a
// channel.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Proto returns a protocol-class error tagged with the offending field index.
func Proto(code Code, field int, message string) *Error {
	return &Error{Code: code, Message: message, Field: field}
}

// CodeOf extracts the taxonomy code from an error chain, or empty string.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FieldOf extracts the ISO-8583 field index from a protocol error, -1 if the
// error carries none.
func FieldOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return -1
}

// Retryable reports whether the engine may retry the operation internally.
// Only transient infrastructure failures qualify.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeDeadlockDetected, CodeStoreUnavailable:
		return true
	}
	return false
}
