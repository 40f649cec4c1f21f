package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeIllegalTransition = "ILLEGAL_TRANSITION"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeExternalCall      = "EXTERNAL_CALL_FAILED"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing order or package.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// OrderNotFound creates a NotFoundError for an order.
func OrderNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "order", ID: id}
}

// PackageNotFound creates a NotFoundError for a catalogue package.
func PackageNotFound(key string) *NotFoundError {
	return &NotFoundError{Kind: "package", ID: key}
}

// IllegalTransitionError reports a state machine violation.
type IllegalTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsIllegalTransition reports whether err is an *IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}
