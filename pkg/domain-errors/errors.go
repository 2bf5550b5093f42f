package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error so transport layers can map it to a response
// without inspecting messages.
type Code string

const (
	CodeInternal            Code = "internal"
	CodeValidation          Code = "validation"
	CodeConflict            Code = "conflict"
	CodeTimeout             Code = "timeout"
	CodeUnavailable         Code = "unavailable"
	CodeMalformedIdentifier Code = "malformed_identifier"
	CodeUnknownReceipt      Code = "unknown_receipt"
	CodeCrossTenantAccess   Code = "cross_tenant_access"
)

// Error is a coded domain error. Err keeps the underlying cause reachable
// through errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	c, ok := GetCode(err)
	return ok && c == code
}

// GetCode returns the code of the outermost domain error in err's chain.
func GetCode(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}
