package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// NewBadRequestError creates a request validation error with field context.
func NewBadRequestError(field, message string) *AppError {
	return New(ErrCodeBadRequest, message).
		WithContext("field", field)
}

// NewAlreadyActiveError reports a duplicate initialize for a live tenant.
func NewAlreadyActiveError(tenantID string) *AppError {
	return New(ErrCodeAlreadyActive, fmt.Sprintf("session already active for tenant %s", tenantID)).
		WithContext("tenant_id", tenantID)
}

// NewNotFoundError reports a command against an absent session.
func NewNotFoundError(tenantID string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("no session for tenant %s", tenantID)).
		WithContext("tenant_id", tenantID)
}

// NewNotReadyError reports a command against a session that has not
// reached the ready state.
func NewNotReadyError(tenantID, state string) *AppError {
	return New(ErrCodeNotReady, fmt.Sprintf("session for tenant %s is not ready", tenantID)).
		WithContext("tenant_id", tenantID).
		WithContext("state", state)
}

// NewPersistenceError creates a persistence error with operation context.
func NewPersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistenceFailure, fmt.Sprintf("persistence %s failed", operation)).
		WithContext("operation", operation)
}

// NewTransportError wraps a transport failure; 5xx-class failures are
// marked retryable.
func NewTransportError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransportFailure, fmt.Sprintf("transport %s failed", operation)).
		WithContext("operation", operation)
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// HTTPStatusCode maps error codes to HTTP status codes.
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeBadRequest, ErrCodePeerUnregistered, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeAlreadyActive, ErrCodeNotReady:
		return http.StatusConflict
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeAuthFailure:
		return http.StatusUnauthorized
	case ErrCodeSendFailed, ErrCodeLogoutFailed, ErrCodeTransportFailure:
		return http.StatusBadGateway
	case ErrCodePersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the standardized error body returned by the API.
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response body.
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{RequestID: requestID}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		response.Error.Code = appErr.Code
		response.Error.Message = appErr.Message
	} else {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = "an internal error occurred"
	}

	return response
}
