package crm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a structured error response from the CRM API.
// Prefer the predicate functions to asserting on this type.
type APIError struct {
	operation  string
	statusCode int
	errorCode  string
	message    string
}

func (e *APIError) Error() string {
	if e.errorCode != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.errorCode, e.message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, errorCode, message string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		errorCode:  errorCode,
		message:    message,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// ErrorCode returns the Salesforce error code, e.g. INVALID_FIELD.
func (e *APIError) ErrorCode() string { return e.errorCode }

// Message returns the human-readable error message.
func (e *APIError) Message() string { return e.message }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// Salesforce error codes with special handling.
const (
	codeRequestLimitExceeded = "REQUEST_LIMIT_EXCEEDED"
	codeEntityDeleted        = "ENTITY_IS_DELETED"
)

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsRateLimited reports whether the CRM rejected the call for exceeding its
// request limits.
func IsRateLimited(err error) bool {
	return HasStatusCode(err, http.StatusTooManyRequests) || HasErrorCode(err, codeRequestLimitExceeded)
}

// IsAlreadyDeleted reports whether a delete failed because the record was
// deleted earlier.
func IsAlreadyDeleted(err error) bool { return HasErrorCode(err, codeEntityDeleted) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// HasErrorCode reports whether err is an API error whose Salesforce error code matches.
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.errorCode == code
}

// IsRetryable reports whether repeating the call might succeed: rate
// limiting, server errors and transport failures. Context cancellation is
// never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return IsRateLimited(err) || apiErr.statusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
