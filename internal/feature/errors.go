package feature

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeMissingFeature indicates no feature is registered for an expression.
	ErrCodeMissingFeature ErrorCode = "MISSING_FEATURE"

	// ErrCodeUnsupportedExpression indicates an expression shape a feature
	// cannot handle.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeUnsupportedFrom indicates a FROM or JOIN source shape that is
	// neither a table nor a sub-select.
	ErrCodeUnsupportedFrom ErrorCode = "UNSUPPORTED_FROM"

	// ErrCodeUnsupportedGroupBy indicates a GROUP BY expression that is not
	// a function, column or binary expression.
	ErrCodeUnsupportedGroupBy ErrorCode = "UNSUPPORTED_GROUP_BY"

	// ErrCodeUnsupportedSelectItem indicates a select item that cannot be
	// projected.
	ErrCodeUnsupportedSelectItem ErrorCode = "UNSUPPORTED_SELECT_ITEM"

	// ErrCodeInvalidArguments indicates a function called with the wrong
	// number or kind of arguments.
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"

	// ErrCodeInvalidQuery indicates a structurally malformed statement.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
)

// CompileError is returned when a statement cannot be compiled. It is
// raised before any data flows.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Feature is the feature that was looked up, when relevant.
	Feature ID

	// Expr is the textual form of the offending expression.
	Expr string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expr != "" {
		msg += fmt.Sprintf(" (expr=%s)", e.Expr)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// Errorf builds a CompileError for expr (which may be nil).
func Errorf(code ErrorCode, expr fmt.Stringer, format string, args ...any) *CompileError {
	ce := &CompileError{Code: code, Message: fmt.Sprintf(format, args...)}
	if expr != nil {
		ce.Expr = expr.String()
	}
	return ce
}

// IsCompileError returns true if err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// HasCode returns true if err is or wraps a CompileError with code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsMissingFeature returns true if err reports a missing feature.
func IsMissingFeature(err error) bool {
	return HasCode(err, ErrCodeMissingFeature)
}
