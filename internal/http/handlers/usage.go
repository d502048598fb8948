package handlers

import (
	"context"
	"time"

	"github.com/draftwise/draftwise-api/internal/service"
)

// UsageHandler handles usage and failure report endpoints.
type UsageHandler struct {
	svc *service.AnalysisService
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(svc *service.AnalysisService) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// GetUsageOutput represents the usage response.
type GetUsageOutput struct {
	Body service.UsageStatus
}

// GetUsage returns the caller's current quota window and cache footprint.
func (h *UsageHandler) GetUsage(ctx context.Context, input *struct{}) (*GetUsageOutput, error) {
	status, err := h.svc.Usage(ctx, getUserID(ctx))
	if err != nil {
		return nil, NewAnalysisHTTPError(err)
	}
	return &GetUsageOutput{Body: *status}, nil
}

// ListReportsInput represents the failure report listing request.
type ListReportsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of reports to return"`
}

// ReportOutput is one failure report on the wire.
type ReportOutput struct {
	ID           string     `json:"id"`
	Category     string     `json:"category"`
	Severity     string     `json:"severity"`
	Message      string     `json:"message"`
	RetryAttempt int        `json:"retry_attempt"`
	Resolution   string     `json:"resolution,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// ListReportsOutput represents the failure report listing response.
type ListReportsOutput struct {
	Body struct {
		Reports []ReportOutput `json:"reports"`
	}
}

// ListReports returns the caller's most recent failure reports.
func (h *UsageHandler) ListReports(ctx context.Context, input *ListReportsInput) (*ListReportsOutput, error) {
	reports, err := h.svc.Reports(ctx, getUserID(ctx), input.Limit)
	if err != nil {
		return nil, NewAnalysisHTTPError(err)
	}

	out := &ListReportsOutput{}
	out.Body.Reports = make([]ReportOutput, 0, len(reports))
	for _, r := range reports {
		out.Body.Reports = append(out.Body.Reports, ReportOutput{
			ID:           r.ID,
			Category:     r.Category,
			Severity:     string(r.Severity),
			Message:      r.Message,
			RetryAttempt: r.RetryAttempt,
			Resolution:   r.Resolution,
			CreatedAt:    r.CreatedAt,
			ResolvedAt:   r.ResolvedAt,
		})
	}
	return out, nil
}
