// Package llm provides the model-call client, failure classification,
// and retry policy for the analysis gateway.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/draftwise/draftwise-api/internal/models"
)

// Category is the closed failure taxonomy. Every call failure maps to
// exactly one category, and each category maps to exactly one
// user-facing error code.
type Category string

const (
	CategoryParse      Category = "parse_error"
	CategoryAPI        Category = "api_error"
	CategoryValidation Category = "validation_error"
	CategoryRateLimit  Category = "rate_limit_error"
	CategoryTimeout    Category = "timeout_error"
	CategoryNetwork    Category = "network_error"
)

// User-facing error codes, stable across releases.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeInvalidContent    = "INVALID_CONTENT"
	CodeContentTooLong    = "CONTENT_TOO_LONG"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeAPIError          = "API_ERROR"
	CodeConnectionError   = "CONNECTION_ERROR"
	CodeTimeoutError      = "TIMEOUT_ERROR"
	CodeUnknownError      = "UNKNOWN_ERROR"
)

// Code returns the user-facing error code for a category.
func (c Category) Code() string {
	switch c {
	case CategoryRateLimit:
		return CodeRateLimitExceeded
	case CategoryValidation:
		return CodeInvalidContent
	case CategoryAPI:
		return CodeAPIError
	case CategoryNetwork:
		return CodeConnectionError
	case CategoryTimeout:
		return CodeTimeoutError
	case CategoryParse:
		// Parse failures degrade to partial/empty results and are never
		// surfaced as errors; the code exists for audit records only.
		return CodeAPIError
	default:
		return CodeUnknownError
	}
}

// AnalysisError is the typed error threaded through the retry loop.
// Retryability is a property of the value, not of exception inspection.
type AnalysisError struct {
	Err        error
	Category   Category
	Severity   models.ReportSeverity
	StatusCode int
	Message    string // user-facing
	Details    string // raw provider message, for audit records
	RetryAfter int    // seconds; set for rate-limit rejections

	// codeOverride distinguishes codes that share a category, e.g.
	// CONTENT_TOO_LONG within validation failures.
	codeOverride string
}

func (e *AnalysisError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown analysis error"
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Code returns the stable user-facing code for this error.
func (e *AnalysisError) Code() string {
	if e.codeOverride != "" {
		return e.codeOverride
	}
	return e.Category.Code()
}

// APIStatusError is returned by the client when the provider responds
// with a non-200 status. It preserves the status for classification.
type APIStatusError struct {
	StatusCode int
	Body       string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Classify maps an arbitrary call failure to the closed taxonomy,
// inspecting HTTP status, socket error types, and message content.
func Classify(err error) *AnalysisError {
	if err == nil {
		return nil
	}

	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}

	out := &AnalysisError{Err: err, Details: err.Error()}

	// Context expiry first: a cancelled or timed-out call is a timeout
	// regardless of how the transport wrapped it.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		out.Category = CategoryTimeout
		out.Severity = models.ReportSeverityMedium
		out.Message = "The analysis request timed out. Please try again."
		return out
	}

	// Socket-level failures.
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			out.Category = CategoryTimeout
			out.Severity = models.ReportSeverityMedium
			out.Message = "The analysis request timed out. Please try again."
			return out
		}
		out.Category = CategoryNetwork
		out.Severity = models.ReportSeverityMedium
		out.Message = "Could not reach the analysis service. Please try again."
		return out
	}

	// HTTP status classification.
	var statusErr *APIStatusError
	if errors.As(err, &statusErr) {
		out.StatusCode = statusErr.StatusCode
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			out.Category = CategoryRateLimit
			out.Severity = models.ReportSeverityMedium
			out.Message = "The analysis service is rate limited. Please wait before retrying."
		case statusErr.StatusCode >= 500:
			out.Category = CategoryAPI
			out.Severity = models.ReportSeverityHigh
			out.Message = "The analysis service is experiencing issues. Please try again."
		case statusErr.StatusCode >= 400:
			out.Category = CategoryValidation
			out.Severity = models.ReportSeverityLow
			out.Message = "The analysis request was rejected by the provider."
		default:
			out.Category = CategoryAPI
			out.Severity = models.ReportSeverityMedium
			out.Message = "The analysis service returned an unexpected response."
		}
		return out
	}

	// Message-content heuristics for errors that carry no type info.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "json") || strings.Contains(msg, "parse") || strings.Contains(msg, "unmarshal"):
		out.Category = CategoryParse
		out.Severity = models.ReportSeverityMedium
		out.Message = "The analysis response could not be understood."
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		out.Category = CategoryRateLimit
		out.Severity = models.ReportSeverityMedium
		out.Message = "The analysis service is rate limited. Please wait before retrying."
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		out.Category = CategoryTimeout
		out.Severity = models.ReportSeverityMedium
		out.Message = "The analysis request timed out. Please try again."
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "broken pipe"):
		out.Category = CategoryNetwork
		out.Severity = models.ReportSeverityMedium
		out.Message = "Could not reach the analysis service. Please try again."
	default:
		out.Category = CategoryAPI
		out.Severity = models.ReportSeverityHigh
		out.Message = "The analysis service returned an error. Please try again."
	}
	return out
}

// NewValidationError builds an immediately-surfaced input error.
func NewValidationError(code, message string) *AnalysisError {
	ae := &AnalysisError{
		Category: CategoryValidation,
		Severity: models.ReportSeverityLow,
		Message:  message,
	}
	if code == CodeContentTooLong {
		ae.Err = errors.New("content too long")
	}
	ae.codeOverride = code
	return ae
}

// NewUnauthenticatedError builds the rejection for requests with no
// verified user identity.
func NewUnauthenticatedError() *AnalysisError {
	return &AnalysisError{
		Category:     CategoryValidation,
		Severity:     models.ReportSeverityLow,
		Message:      "Authentication is required.",
		codeOverride: CodeUnauthenticated,
	}
}

// NewRateLimitError builds a quota rejection carrying the window reset.
func NewRateLimitError(message string, retryAfter int) *AnalysisError {
	return &AnalysisError{
		Category:   CategoryRateLimit,
		Severity:   models.ReportSeverityLow,
		Message:    message,
		RetryAfter: retryAfter,
	}
}
