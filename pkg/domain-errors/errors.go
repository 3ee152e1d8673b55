// Package domainerrors defines the error taxonomy shared across modules.
// Every error that crosses a module boundary carries a Code so transports can
// map it without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// Document pipeline rejections, in pipeline order.
	CodeMalformedInput      Code = "malformed_input"
	CodeStructuralRejection Code = "structural_rejection"
	CodeExtractionFailure   Code = "extraction_failure"
	CodeAttributeRejection  Code = "attribute_rejection"

	// Recovery protocol outcomes surfaced as errors at the transport.
	CodeNotFound        Code = "not_found"
	CodeRateLimited     Code = "rate_limited"
	CodeMismatch        Code = "mismatch"
	CodeDeliveryFailure Code = "delivery_failure"

	// Request and infrastructure failures.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeValidation   Code = "validation_error"
	CodeStoreFailure Code = "store_failure"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. Message is client-safe for every code except
// the internal ones, which transports redact.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving it for
// errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost coded error, or a generic
// fallback for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
