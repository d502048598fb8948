// Package models defines the domain models for the analysis gateway.
// User management and authentication are handled upstream; UserID fields
// carry the authenticated subject from the caller's JWT.
package models

import (
	"time"
)

// Severity indicates how strongly a suggestion should be surfaced.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity coerces an arbitrary string to a valid Severity.
// Invalid values map to SeverityMedium.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// AudienceLevel identifies the intended readership of a document.
type AudienceLevel string

const (
	AudienceGeneral      AudienceLevel = "general"
	AudienceAcademic     AudienceLevel = "academic"
	AudienceProfessional AudienceLevel = "professional"
	AudienceCreative     AudienceLevel = "creative"
)

// DocumentType identifies the kind of document being analyzed.
type DocumentType string

const (
	DocumentEssay   DocumentType = "essay"
	DocumentEmail   DocumentType = "email"
	DocumentReport  DocumentType = "report"
	DocumentArticle DocumentType = "article"
	DocumentGeneric DocumentType = "generic"
)

// AnalysisOptions selects which analysis categories run and how the
// prompt is tuned. At least one Include* flag must be set.
type AnalysisOptions struct {
	IncludeGrammar     bool          `json:"include_grammar"`
	IncludeStyle       bool          `json:"include_style"`
	IncludeReadability bool          `json:"include_readability"`
	AudienceLevel      AudienceLevel `json:"audience_level,omitempty"`
	DocumentType       DocumentType  `json:"document_type,omitempty"`
}

// HasCategory returns true if at least one analysis category is enabled.
func (o AnalysisOptions) HasCategory() bool {
	return o.IncludeGrammar || o.IncludeStyle || o.IncludeReadability
}

// AnalysisRequest is the gateway input contract.
type AnalysisRequest struct {
	UserID  string          `json:"user_id"`
	Text    string          `json:"text"`
	Options AnalysisOptions `json:"options"`
}

// Suggestion is a single writing suggestion returned by the model,
// sanitized into a bounded, typed form.
type Suggestion struct {
	ID            string   `json:"id"`
	Severity      Severity `json:"severity"`
	StartOffset   int      `json:"start_offset"`
	EndOffset     int      `json:"end_offset"`
	OriginalText  string   `json:"original_text"`
	SuggestedText string   `json:"suggested_text"`
	Explanation   string   `json:"explanation"`
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`

	// Type-specific fields; exactly one is populated depending on the
	// suggestion list the entry came from.
	Rule       string `json:"rule,omitempty"`        // grammar: the rule violated
	StyleGoal  string `json:"style_goal,omitempty"`  // style: what the rewrite improves
	MetricName string `json:"metric_name,omitempty"` // readability: the metric addressed
}

// ReadabilityMetrics carries document-level readability scores, each
// clamped to its documented plausible range by the parser.
type ReadabilityMetrics struct {
	FleschScore        float64 `json:"flesch_score"`         // 0-100
	GradeLevel         float64 `json:"grade_level"`          // 0-20
	AvgSentenceLength  float64 `json:"avg_sentence_length"`  // 0-200
	AvgWordLength      float64 `json:"avg_word_length"`      // 0-50
	PassiveVoiceRatio  float64 `json:"passive_voice_ratio"`  // 0-1
	ComplexWordRatio   float64 `json:"complex_word_ratio"`   // 0-1
}

// AnalysisResult is the structurally valid output the gateway always
// produces, possibly empty after fallback.
type AnalysisResult struct {
	GrammarSuggestions     []Suggestion       `json:"grammar_suggestions"`
	StyleSuggestions       []Suggestion       `json:"style_suggestions"`
	ReadabilitySuggestions []Suggestion       `json:"readability_suggestions"`
	ReadabilityMetrics     ReadabilityMetrics `json:"readability_metrics"`
	TotalSuggestions       int                `json:"total_suggestions"`
	ProcessingTimeMs       int64              `json:"processing_time_ms"`

	// FallbackUsed flags that this is a synthesized safe result rather
	// than a parsed model response.
	FallbackUsed bool `json:"fallback_used,omitempty"`
	// Partial flags that some suggestion arrays were recovered while
	// others were lost to malformed model output.
	Partial bool `json:"partial,omitempty"`
}

// CountSuggestions recomputes TotalSuggestions from the three lists.
func (r *AnalysisResult) CountSuggestions() int {
	r.TotalSuggestions = len(r.GrammarSuggestions) + len(r.StyleSuggestions) + len(r.ReadabilitySuggestions)
	return r.TotalSuggestions
}

// RateWindow is the per-user fixed-window quota record.
type RateWindow struct {
	UserHash       string    `json:"-"`
	WindowStart    time.Time `json:"window_start"`
	RequestCount   int       `json:"request_count"`
	CharacterCount int       `json:"character_count"`
	LastRequest    time.Time `json:"last_request"`
}

// CacheEntry maps a content fingerprint to a prior analysis result.
// Keyed by (user, fingerprint); never shared across users.
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	UserHash    string          `json:"-"`
	Result      *AnalysisResult `json:"result"`
	CachedAt    time.Time       `json:"cached_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ReportSeverity grades a failure for monitoring and alerting only;
// it never drives control flow.
type ReportSeverity string

const (
	ReportSeverityLow      ReportSeverity = "low"
	ReportSeverityMedium   ReportSeverity = "medium"
	ReportSeverityHigh     ReportSeverity = "high"
	ReportSeverityCritical ReportSeverity = "critical"
)

// ErrorReport is the immutable audit record of a single failed analysis
// attempt. Resolution is attached later if a fallback was served.
type ErrorReport struct {
	ID           string         `json:"id"`
	UserHash     string         `json:"-"`
	Category     string         `json:"category"`
	Severity     ReportSeverity `json:"severity"`
	Message      string         `json:"message"`
	RetryAttempt int            `json:"retry_attempt"`
	Resolution   string         `json:"resolution,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}
