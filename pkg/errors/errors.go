package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the kind of failure returned by a command.
type ErrorCode string

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, errors.ErrSlotUnavailable).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code to an HTTP status. It is picked up by the
// error middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSlotUnavailable, CodeSlotConflict, CodeInvalidTransition,
		CodeAlreadyExists, CodeConcurrentUpdate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error codes
const (
	CodeSlotUnavailable   ErrorCode = "SLOT_UNAVAILABLE"
	CodeSlotConflict      ErrorCode = "SLOT_CONFLICT"
	CodePaymentRequired   ErrorCode = "PAYMENT_REQUIRED"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeConcurrentUpdate  ErrorCode = "CONCURRENT_UPDATE"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInternal          ErrorCode = "INTERNAL"
)

// Sentinels for errors.Is comparisons.
var (
	ErrSlotUnavailable   = &AppError{Code: CodeSlotUnavailable, Message: "slot is not bookable"}
	ErrSlotConflict      = &AppError{Code: CodeSlotConflict, Message: "slot is referenced by a live appointment"}
	ErrPaymentRequired   = &AppError{Code: CodePaymentRequired, Message: "payment is required"}
	ErrInvalidTransition = &AppError{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrValidation        = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound          = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrConcurrentUpdate  = &AppError{Code: CodeConcurrentUpdate, Message: "concurrent update"}
	ErrUnauthorized      = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden         = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrInternal          = &AppError{Code: CodeInternal, Message: "internal server error"}
)

// Error constructors
func SlotUnavailable(slotID string) *AppError {
	return &AppError{
		Code:    CodeSlotUnavailable,
		Message: fmt.Sprintf("slot %s is not bookable", slotID),
	}
}

func SlotConflict(slotID string) *AppError {
	return &AppError{
		Code:    CodeSlotConflict,
		Message: fmt.Sprintf("slot %s is referenced by a live appointment", slotID),
	}
}

func PaymentRequired(appointmentID string) *AppError {
	return &AppError{
		Code:    CodePaymentRequired,
		Message: fmt.Sprintf("appointment %s has no settled payment", appointmentID),
	}
}

func InvalidTransition(from, event string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s an appointment in status %s", event, from),
	}
}

func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf("%s %s already exists", resource, id),
	}
}

func ConcurrentUpdate(resource, id string) *AppError {
	return &AppError{
		Code:    CodeConcurrentUpdate,
		Message: fmt.Sprintf("%s %s was modified concurrently", resource, id),
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in the chain, or
// CodeInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// As is a shorthand for extracting an AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
