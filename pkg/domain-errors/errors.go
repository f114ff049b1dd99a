// Package domainerrors carries coded domain errors across service boundaries.
//
// Services return *Error values (optionally wrapping a typed cause) so that
// transports can map a Code to a status without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidPhaseTransition  Code = "invalid_phase_transition"
	CodeAlreadyRegistered       Code = "already_registered"
	CodeNotProvisional          Code = "not_provisional"
	CodeUnknownParticipant      Code = "unknown_participant"
	CodeInfeasible              Code = "infeasible"
	CodeMalformedConstraintFile Code = "malformed_constraint_file"
	CodeForbidden               Code = "forbidden"
	CodeUnauthorized            Code = "unauthorized"
	CodeValidation              Code = "validation_error"
	CodeNotFound                Code = "not_found"
	CodeInternal                Code = "internal_error"
)

// Error is a coded domain error. Err, when set, is the underlying cause and
// is reachable through errors.Is / errors.As.
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

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
