package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrClientInput   = errors.New("client input error")
	ErrNotFound      = errors.New("not found")
	ErrRejected      = errors.New("rejected by cart")
	ErrUpstreamError = errors.New("upstream error")
)

// Wire error codes. The terminal matches on these, keep them stable.
const (
	CodeNoKey         = "no_key"
	CodeInvalidKey    = "invalid_key"
	CodeNoProducts    = "no_products"
	CodeInvalidFormat = "invalid_format"
	CodeNotFound      = "not_found"
	CodeRejected      = "rejected"
	CodeUpstream      = "upstream_error"
	CodeInternal      = "internal_error"
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNoKeyError creates a 500 error for a store without a public key.
func NewNoKeyError() *APIError {
	return &APIError{
		Code:       CodeNoKey,
		Message:    "Chave pública não configurada.",
		StatusCode: http.StatusInternalServerError,
		Err:        ErrConfiguration,
	}
}

// NewInvalidKeyError creates a 500 error for key material that is not a usable public key.
func NewInvalidKeyError(reason string) *APIError {
	return &APIError{
		Code:       CodeInvalidKey,
		Message:    "Chave pública inválida.",
		StatusCode: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %s", ErrConfiguration, reason),
	}
}

// NewNoProductsError creates a 400 error for a restore call without products.
func NewNoProductsError() *APIError {
	return &APIError{
		Code:       CodeNoProducts,
		Message:    "Nenhum produto informado.",
		StatusCode: http.StatusBadRequest,
		Err:        ErrClientInput,
	}
}

// NewInvalidFormatError creates a 400 error for a product list that is not a JSON array.
func NewInvalidFormatError() *APIError {
	return &APIError{
		Code:       CodeInvalidFormat,
		Message:    "Formato inválido.",
		StatusCode: http.StatusBadRequest,
		Err:        ErrClientInput,
	}
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// NewRejectedError creates a 409 error for a cart mutation the store declined.
func NewRejectedError(reason string) *APIError {
	return &APIError{
		Code:       CodeRejected,
		Message:    reason,
		StatusCode: http.StatusConflict,
		Err:        ErrRejected,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       CodeUpstream,
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       CodeInternal,
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
