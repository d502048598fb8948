package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/draftwise/draftwise-api/internal/llm"
)

// AnalysisHTTPError is the wire form of an analysis failure. It
// implements huma.StatusError so handlers can return it directly.
type AnalysisHTTPError struct {
	Status     int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (e *AnalysisHTTPError) Error() string {
	return e.Message
}

func (e *AnalysisHTTPError) GetStatus() int {
	return e.Status
}

// GetHeaders adds a Retry-After header to rate-limit rejections.
func (e *AnalysisHTTPError) GetHeaders() http.Header {
	if e.RetryAfter <= 0 {
		return nil
	}
	return http.Header{"Retry-After": []string{strconv.Itoa(e.RetryAfter)}}
}

// NewAnalysisHTTPError maps a service error to its HTTP form. Every
// error code maps to exactly one status.
func NewAnalysisHTTPError(err error) *AnalysisHTTPError {
	var ae *llm.AnalysisError
	if !errors.As(err, &ae) {
		return &AnalysisHTTPError{
			Status:  http.StatusInternalServerError,
			Code:    llm.CodeUnknownError,
			Message: "An unexpected error occurred.",
		}
	}

	return &AnalysisHTTPError{
		Status:     statusForCode(ae.Code()),
		Code:       ae.Code(),
		Message:    ae.Message,
		RetryAfter: ae.RetryAfter,
	}
}

func statusForCode(code string) int {
	switch code {
	case llm.CodeUnauthenticated:
		return http.StatusUnauthorized
	case llm.CodeInvalidContent:
		return http.StatusBadRequest
	case llm.CodeContentTooLong:
		return http.StatusRequestEntityTooLarge
	case llm.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case llm.CodeTimeoutError:
		return http.StatusGatewayTimeout
	case llm.CodeConnectionError:
		return http.StatusBadGateway
	case llm.CodeAPIError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
