package exchange

import (
	"errors"
	"net/http"
	"strings"
)

// Error codes carried in structured failure bodies
const (
	CodeBadRequest       = "bad_request"
	CodeMalformedPath    = "malformed_path"
	CodeValidationFailed = "validation_failed"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeTooManyRequests  = "too_many_requests"
	CodeInternal         = "internal_error"
	CodeAmbiguousRoute   = "ambiguous_route"
	CodeGatewayTimeout   = "gateway_timeout"
)

// ErrorBody is the structured body of every failure response
type ErrorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusCoder is implemented by errors that map to a specific HTTP status
type StatusCoder interface {
	StatusCode() int
}

// StatusError is an error carrying an HTTP status and a failure code
type StatusError struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

// NewStatusError creates a StatusError
func NewStatusError(status int, code, message string) *StatusError {
	return &StatusError{Status: status, Code: code, Message: message}
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return e.Message
}

// StatusCode implements StatusCoder
func (e *StatusError) StatusCode() int {
	return e.Status
}

// Failure creates a structured failure response
func Failure(status int, code, message string, details map[string]interface{}) *Response {
	if code == "" {
		code = codeFromStatus(status)
	}
	resp := NewResponse(status, &ErrorBody{
		Error:   errorTitle(status),
		Message: message,
		Code:    code,
		Details: details,
	})
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	return resp
}

// FromError converts err into a structured failure response. Errors that
// implement StatusCoder keep their status; all others become 500.
func FromError(err error) *Response {
	var se *StatusError
	if errors.As(err, &se) {
		return Failure(se.Status, se.Code, se.Message, se.Details)
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return Failure(sc.StatusCode(), "", err.Error(), nil)
	}
	return Failure(http.StatusInternalServerError, CodeInternal, err.Error(), nil)
}

// BadRequest creates a 400 failure response
func BadRequest(message string, details map[string]interface{}) *Response {
	return Failure(http.StatusBadRequest, CodeBadRequest, message, details)
}

// InternalError creates a 500 failure response
func InternalError(message string) *Response {
	return Failure(http.StatusInternalServerError, CodeInternal, message, nil)
}

// GatewayTimeout creates a 504 failure response
func GatewayTimeout() *Response {
	return Failure(http.StatusGatewayTimeout, CodeGatewayTimeout, "Request timeout", nil)
}

// codeFromStatus derives a failure code from an HTTP status
func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusGatewayTimeout:
		return CodeGatewayTimeout
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func errorTitle(status int) string {
	if status >= 500 {
		return "server_error"
	}
	return "client_error"
}
