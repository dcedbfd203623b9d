package models

import "fmt"

// Error codes used in HTTP responses and internal error handling.
const (
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUpstream         = "UPSTREAM_FAILED"
	ErrCodeTimeout          = "RENDER_TIMEOUT"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
)

// Tool error kinds reported inside the MCP result payload. These strings are
// part of the tool contract and must not change.
const (
	ToolErrMissingQuery  = "missing_query"
	ToolErrQueryTooLong  = "query_too_long"
	ToolErrTimeout       = "timeout"
	ToolErrUpstreamError = "upstream_error"
	ToolErrException     = "exception"
)

// ErrorDetail is the structured error in HTTP responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail for JSON error bodies.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// Error is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type Error struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
