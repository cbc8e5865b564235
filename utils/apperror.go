package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer and callers can react without string matching.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindAuth              ErrorKind = "auth_error"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindCarUnavailable    ErrorKind = "car_unavailable"
	KindGateway           ErrorKind = "gateway_error"
	KindConflict          ErrorKind = "conflict"
)

// AppError is the typed error returned by services and repositories.
type AppError struct {
	Kind    ErrorKind
	Message string
	// Status overrides the default HTTP status for the kind (401 vs 403 auth failures,
	// the upstream status of a gateway error).
	Status    int
	Retryable bool
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...interface{}) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewAuthError builds an auth failure; status is 401 for a bad credential and 403 for a missing one.
func NewAuthError(status int, message string) error {
	return &AppError{Kind: KindAuth, Message: message, Status: status}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidTransitionError(format string, args ...interface{}) error {
	return &AppError{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func NewCarUnavailableError(carID string) error {
	return &AppError{Kind: KindCarUnavailable, Message: fmt.Sprintf("car %s is no longer available", carID)}
}

// NewGatewayError wraps an upstream failure. upstreamStatus is 0 for transport errors.
func NewGatewayError(upstreamStatus int, retryable bool, message string, err error) error {
	return &AppError{Kind: KindGateway, Message: message, Status: upstreamStatus, Retryable: retryable, Err: err}
}

func NewConflictError(message string, err error) error {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a gateway error worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == KindGateway && appErr.Retryable
}

// StatusFor maps an error to the HTTP status the API responds with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		if appErr.Status != 0 {
			return appErr.Status
		}
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindCarUnavailable:
		return http.StatusConflict
	case KindGateway:
		if appErr.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case KindConflict:
		// already processed; idempotent success
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// MessageFor returns the user-facing message of err.
func MessageFor(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal Server Error"
}
