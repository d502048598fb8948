package handlers

import (
	"context"

	"github.com/draftwise/draftwise-api/internal/models"
	"github.com/draftwise/draftwise-api/internal/service"
)

// AnalyzeHandler handles text analysis endpoints.
type AnalyzeHandler struct {
	svc *service.AnalysisService
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(svc *service.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc}
}

// AnalyzeInput represents an analysis request.
type AnalyzeInput struct {
	Body struct {
		Text    string `json:"text" minLength:"1" doc:"Text to analyze"`
		Options struct {
			IncludeGrammar     bool   `json:"include_grammar" doc:"Run grammar analysis"`
			IncludeStyle       bool   `json:"include_style" doc:"Run style analysis"`
			IncludeReadability bool   `json:"include_readability" doc:"Run readability analysis"`
			AudienceLevel      string `json:"audience_level,omitempty" enum:"general,academic,professional,creative" doc:"Intended readership"`
			DocumentType       string `json:"document_type,omitempty" enum:"essay,email,report,article,generic" doc:"Kind of document"`
		} `json:"options"`
	}
}

// AnalyzeOutput represents an analysis response.
type AnalyzeOutput struct {
	Body models.AnalysisResult
}

func (i *AnalyzeInput) options() models.AnalysisOptions {
	return models.AnalysisOptions{
		IncludeGrammar:     i.Body.Options.IncludeGrammar,
		IncludeStyle:       i.Body.Options.IncludeStyle,
		IncludeReadability: i.Body.Options.IncludeReadability,
		AudienceLevel:      models.AudienceLevel(i.Body.Options.AudienceLevel),
		DocumentType:       models.DocumentType(i.Body.Options.DocumentType),
	}
}

// Analyze handles full analysis requests.
func (h *AnalyzeHandler) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	result, err := h.svc.Analyze(ctx, getUserID(ctx), input.Body.Text, input.options())
	if err != nil {
		return nil, NewAnalysisHTTPError(err)
	}
	return &AnalyzeOutput{Body: *result}, nil
}

// AnalyzeRealtime handles the lighter analysis used while the user is
// typing. Same pipeline, shorter text ceiling.
func (h *AnalyzeHandler) AnalyzeRealtime(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	result, err := h.svc.AnalyzeRealtime(ctx, getUserID(ctx), input.Body.Text, input.options())
	if err != nil {
		return nil, NewAnalysisHTTPError(err)
	}
	return &AnalyzeOutput{Body: *result}, nil
}
