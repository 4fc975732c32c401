// Package domainerrors defines the coded error taxonomy shared by services
// and transports. Stores return infrastructure sentinels (pkg/platform/sentinel);
// services translate them into coded errors here so transports can map codes
// to status lines without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeInternal           Code = "internal"
	CodeInvariantViolation Code = "invariant_violation"

	// Registry-specific codes.
	CodeMissingField     Code = "missing_field"
	CodeInvalidField     Code = "invalid_field"
	CodeReadOnlyField    Code = "read_only_field"
	CodeNameConflict     Code = "name_conflict"
	CodeIDConflict       Code = "id_conflict" // retryable with a fresh random id
	CodeBadSignature     Code = "bad_signature"
	CodeStoreUnavailable Code = "store_unavailable"
)

// Error is a coded domain error. Fields is populated for the field-level
// codes (missing/invalid/read-only) and names the offending record fields.
type Error struct {
	Code    Code
	Message string
	Fields  []string
	cause   error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(e.Fields, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// WithFields builds a field-level coded error naming each offending field.
func WithFields(code Code, message string, fields []string) error {
	return &Error{Code: code, Message: message, Fields: fields}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the offending field names carried by err, if any.
func FieldsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
