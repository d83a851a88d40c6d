package errors

import (
	"errors"
	"fmt"
	"net/http"

	"vidtube/internal/core/domain"
)

// Code is the machine-readable value of the "error" field in API responses.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidOperation   Code = "INVALID_OPERATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeConflict           Code = "CONFLICT"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeBadGateway         Code = "BAD_GATEWAY"
)

// AppError is an error ready to be written as an HTTP response.
type AppError struct {
	Code    Code
	Message string
	Status  int
	Details map[string]interface{}
	cause   error
}

func New(code Code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// Wrap keeps err reachable through errors.Is/As without exposing it to
// clients.
func Wrap(err error, code Code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message, cause: err}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Body is the JSON response payload: {"error", "message", "details"?}.
func (e *AppError) Body() map[string]interface{} {
	body := map[string]interface{}{
		"error":   string(e.Code),
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

func RateLimited() *AppError {
	return New(CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded")
}

func Unavailable(message string) *AppError {
	return New(CodeServiceUnavailable, http.StatusServiceUnavailable, message)
}

func Internal() *AppError {
	return New(CodeInternal, http.StatusInternalServerError, "internal server error")
}

var byKind = map[domain.Kind]struct {
	code   Code
	status int
}{
	domain.KindUnauthenticated:   {CodeUnauthorized, http.StatusUnauthorized},
	domain.KindForbidden:         {CodeForbidden, http.StatusForbidden},
	domain.KindNotFound:          {CodeNotFound, http.StatusNotFound},
	domain.KindInvalidArgument:   {CodeInvalidInput, http.StatusBadRequest},
	domain.KindInvalidOperation:  {CodeInvalidOperation, http.StatusBadRequest},
	domain.KindConflict:          {CodeConflict, http.StatusConflict},
	domain.KindDependencyFailure: {CodeBadGateway, http.StatusBadGateway},
}

// FromDomain converts any error returned by the core into an AppError. An
// AppError already in the chain is returned as is and untyped errors become
// internal errors. Dependency failures never leak their cause's message.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		return Wrap(err, CodeInternal, http.StatusInternalServerError, "internal server error")
	}
	m, ok := byKind[de.Kind]
	if !ok {
		return Wrap(err, CodeInternal, http.StatusInternalServerError, "internal server error")
	}

	message := de.Message
	switch {
	case de.Kind == domain.KindDependencyFailure:
		message = "upstream dependency failed"
	case message == "":
		message = string(de.Kind)
	}
	appErr := Wrap(err, m.code, m.status, message)
	if de.Op != "" {
		appErr.WithDetail("operation", de.Op)
	}
	return appErr
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
