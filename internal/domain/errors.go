package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldViolation describes one invalid request field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError aggregates every violation found in a request. It is
// raised before any network I/O and is never retried.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError marks a legitimately absent race or entity. It is a typed
// "no data" result, not a fault.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ExternalAPIError is a remote or network failure that survived all retries.
type ExternalAPIError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *ExternalAPIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external api %s failed (status %d): %s: %v", e.Endpoint, e.Status, e.Message, e.Err)
	}

	return fmt.Sprintf("external api %s failed (status %d): %s", e.Endpoint, e.Status, e.Message)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

// AppError is an unexpected internal fault carrying contextual parameters.
type AppError struct {
	Message string
	Status  int
	Context map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError wraps an internal failure with context.
func NewAppError(msg string, err error, ctx map[string]any) *AppError {
	return &AppError{
		Message: msg,
		Status:  http.StatusInternalServerError,
		Context: ctx,
		Err:     err,
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError

	return errors.As(err, &nfErr)
}

// HTTPStatus maps the error taxonomy to the status code the HTTP layer
// should respond with.
func HTTPStatus(err error) int {
	var (
		valErr *ValidationError
		nfErr  *NotFoundError
		apiErr *ExternalAPIError
		appErr *AppError
	)

	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.As(err, &appErr):
		if appErr.Status != 0 {
			return appErr.Status
		}

		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
