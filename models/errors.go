package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeInvalidRequest: malformed or unsupported target URL, rejected
	// before any browser session is touched.
	ErrCodeInvalidRequest = "INVALID_REQUEST"

	// ErrCodePoolExhausted: no session became free within the acquire
	// timeout. Retryable by the caller; no browser work occurred.
	ErrCodePoolExhausted = "POOL_EXHAUSTED"

	// ErrCodeNavTimeout: the page failed to reach DOM-ready within budget.
	ErrCodeNavTimeout = "NAVIGATION_TIMEOUT"

	// ErrCodeNavFailed: DNS/connection/TLS failure or an error response
	// without a renderable body. Carries the underlying status/reason.
	ErrCodeNavFailed = "NAVIGATION_FAILED"

	// ErrCodeExtractionDegraded: soft condition (e.g. unparsable JSON-LD
	// blocks). Logged, never propagated as a request failure.
	ErrCodeExtractionDegraded = "EXTRACTION_DEGRADED"

	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type AnalyzeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *AnalyzeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnalyzeError) Unwrap() error {
	return e.Err
}

// NewAnalyzeError creates a new AnalyzeError.
func NewAnalyzeError(code, message string, err error) *AnalyzeError {
	return &AnalyzeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *AnalyzeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
