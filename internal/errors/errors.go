// Package errors defines the typed application errors shared by the bot components.
// Every error carries a code so callers at the orchestration boundary can decide
// between a user-visible reply and a log entry without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown           = "UNKNOWN"
	CodeDatabase          = "DATABASE"
	CodeValidation        = "VALIDATION"
	CodeConfig            = "CONFIG"
	CodeNotFound          = "NOT_FOUND"
	CodeNoContent         = "NO_CONTENT"
	CodeDuplicateSchedule = "DUPLICATE_SCHEDULE_ENTRY"
	CodeInvalidTime       = "INVALID_TIME_FORMAT"
	CodeGeneration        = "GENERATION"
	CodeRender            = "RENDER"
	CodeDelivery          = "DELIVERY"
)

// Sentinels for errors.Is. Matching is done by code, so any *Error with the
// same code satisfies errors.Is(err, ErrX).
var (
	ErrDatabase          = &Error{code: CodeDatabase, message: "storage failure"}
	ErrNotFound          = &Error{code: CodeNotFound, message: "not found"}
	ErrNoContent         = &Error{code: CodeNoContent, message: "no content available"}
	ErrDuplicateSchedule = &Error{code: CodeDuplicateSchedule, message: "duplicate schedule entry"}
	ErrInvalidTime       = &Error{code: CodeInvalidTime, message: "invalid time format"}
	ErrGeneration        = &Error{code: CodeGeneration, message: "generation failure"}
	ErrRender            = &Error{code: CodeRender, message: "render failure"}
	ErrDelivery          = &Error{code: CodeDelivery, message: "delivery failure"}
	ErrValidation        = &Error{code: CodeValidation, message: "validation failure"}
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an application error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// New creates an application error with the given code.
func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Code returns the code of the first application error in the chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

func NewDatabaseError(message string, cause error) error {
	return New(CodeDatabase, message, cause)
}

func NewNotFoundError(message string) error {
	return New(CodeNotFound, message, nil)
}

func NewNoContentError(message string) error {
	return New(CodeNoContent, message, nil)
}

func NewDuplicateScheduleError(timeOfDay string) error {
	return New(CodeDuplicateSchedule, fmt.Sprintf("schedule entry %s already exists", timeOfDay), nil)
}

func NewInvalidTimeError(input string, cause error) error {
	return New(CodeInvalidTime, fmt.Sprintf("invalid time %q, expected HH:MM", input), cause)
}

func NewGenerationError(message string, cause error) error {
	return New(CodeGeneration, message, cause)
}

func NewRenderError(message string, cause error) error {
	return New(CodeRender, message, cause)
}

func NewDeliveryError(message string, cause error) error {
	return New(CodeDelivery, message, cause)
}

func NewValidationError(message string, cause error) error {
	return New(CodeValidation, message, cause)
}
