package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a fault raised while executing a method. It aborts the
// current invocation only.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Method is the invoked method, when known.
	Method string

	// Statement is the statement text that faulted, when known.
	Statement string
}

// RuntimeErrorCode categorizes runtime faults.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownMethod indicates the invoked method is not declared.
	ErrCodeUnknownMethod RuntimeErrorCode = "UNKNOWN_METHOD"

	// ErrCodeUnknownParameter indicates params.X names an undeclared parameter.
	ErrCodeUnknownParameter RuntimeErrorCode = "UNKNOWN_PARAMETER"

	// ErrCodeMissingArgument indicates fewer arguments than the referenced parameter needs.
	ErrCodeMissingArgument RuntimeErrorCode = "MISSING_ARGUMENT"

	// ErrCodeInvalidTarget indicates an assignment whose left side is not state.
	ErrCodeInvalidTarget RuntimeErrorCode = "INVALID_TARGET"

	// ErrCodeUnsupported indicates a statement or expression shape the interpreter does not run.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeInvalidNumber indicates an arithmetic or ordering operand that is not an integer.
	ErrCodeInvalidNumber RuntimeErrorCode = "INVALID_NUMBER"

	// ErrCodeEventArity indicates a declared event emitted with the wrong number of values.
	ErrCodeEventArity RuntimeErrorCode = "EVENT_ARITY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (method=%s)", e.Code, e.Message, e.Method)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRuntimeError reports whether err is or wraps a *RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// FaultCode returns the code of a wrapped *RuntimeError, or "".
func FaultCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsUnknownMethod reports whether err is an unknown method fault.
func IsUnknownMethod(err error) bool {
	return FaultCode(err) == ErrCodeUnknownMethod
}

func faultf(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}
