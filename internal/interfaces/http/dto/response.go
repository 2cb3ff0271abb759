// Package dto holds the request and response shapes of the HTTP API.
package dto

import "net/http"

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, RequestID: requestID},
	}
}

// Error codes
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeUnavailable  = "ERR_SERVICE_UNAVAILABLE"
)

// domainCodes maps domain error codes to API error codes
var domainCodes = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeValidation,
	"INVALID_STATE":          ErrCodeInvalidState,
	"INVALID_START_POSITION": ErrCodeValidation,
	"INVALID_STORE":          ErrCodeValidation,
	"INVALID_TRACKING_BASE":  ErrCodeValidation,
	"INVALID_SALE_CODE":      ErrCodeValidation,
}

// NormalizeErrorCode converts a domain error code to an API error code
func NormalizeErrorCode(code string) string {
	if c, ok := domainCodes[code]; ok {
		return c
	}
	return ErrCodeBadRequest
}

// GetHTTPStatus returns the HTTP status for an API error code
func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodePrinterUnavailable:
		return http.StatusBadGateway
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ErrCodePrinterUnavailable is returned when a confirmed preview could not be printed
const ErrCodePrinterUnavailable = "ERR_PRINTER_UNAVAILABLE"
