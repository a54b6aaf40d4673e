// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthorizationError is returned when the cron secret is missing or wrong.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return "unauthorized: " + e.Reason
	}
	return "unauthorized"
}

func (e *AuthorizationError) HTTPStatus() int { return http.StatusUnauthorized }

func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// ValidationError reports a malformed payload, request or config value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return "validation error: " + e.Message
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors collects several ValidationError values.
type ValidationErrors struct {
	Errors []error
}

func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

func (v *ValidationErrors) HasError() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, err := range v.Errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}

// ExecutionError wraps a failed external call made by an executor.
type ExecutionError struct {
	ActionType string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.ActionType, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(actionType string, err error) error {
	return &ExecutionError{ActionType: actionType, Err: err}
}

// UnknownActionTypeError means no executor is registered for the discriminator.
type UnknownActionTypeError struct {
	ActionType string
}

func (e *UnknownActionTypeError) Error() string {
	return fmt.Sprintf("unknown action type %q", e.ActionType)
}

func (e *UnknownActionTypeError) HTTPStatus() int { return http.StatusBadRequest }

func NewUnknownActionType(actionType string) error {
	return &UnknownActionTypeError{ActionType: actionType}
}

// StoreError is an Action Store failure. It aborts a processor invocation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) HTTPStatus() int { return http.StatusInternalServerError }

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ErrActionNotFound is a sentinel-style error carrying the missing id.
type ErrActionNotFound struct {
	ActionID int64
}

func (e *ErrActionNotFound) Error() string {
	return fmt.Sprintf("scheduled action with ID %d not found", e.ActionID)
}

func (e *ErrActionNotFound) HTTPStatus() int { return http.StatusNotFound }

func NewActionNotFound(id int64) error {
	return &ErrActionNotFound{ActionID: id}
}

// ErrLeadNotFound is returned when an action references a missing lead.
type ErrLeadNotFound struct {
	LeadID int64
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead with ID %d not found", e.LeadID)
}

func NewLeadNotFound(id int64) error {
	return &ErrLeadNotFound{LeadID: id}
}

// HTTPStatus maps an error to a response status, defaulting to 500.
func HTTPStatus(err error) int {
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		return s.HTTPStatus()
	}
	return http.StatusInternalServerError
}
