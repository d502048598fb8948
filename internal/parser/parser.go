// Package parser turns raw model output into a validated AnalysisResult.
//
// Model output is not guaranteed to be well-formed JSON, so parsing is a
// staged recovery pipeline: strip markdown fencing, slice out the JSON
// span, decode, and sanitize; on decode failure, recover the suggestion
// arrays individually; if everything fails, return the canonical empty
// result. Parse never returns an error: the worst case is an empty but
// structurally valid result.
package parser

import (
	"encoding/json"
	"strings"

	"github.com/draftwise/draftwise-api/internal/models"
)

// MaxSuggestions bounds each suggestion list regardless of how many
// entries the model returned.
const MaxSuggestions = 20

// defaultConfidence is substituted when the model omits a confidence.
const defaultConfidence = 0.5

// Parse decodes raw model output into an AnalysisResult. It never fails;
// degraded input degrades suggestion completeness, not type safety.
func Parse(raw string) *models.AnalysisResult {
	cleaned := stripFences(raw)
	cleaned = extractJSONSpan(cleaned)

	var decoded rawResponse
	if err := json.Unmarshal([]byte(cleaned), &decoded); err == nil {
		return buildResult(decoded, false)
	}

	// Direct decode failed: recover each array in isolation.
	recovered := rawResponse{
		GrammarSuggestions:     recoverArray(cleaned, "grammarSuggestions"),
		StyleSuggestions:       recoverArray(cleaned, "styleSuggestions"),
		ReadabilitySuggestions: recoverArray(cleaned, "readabilitySuggestions"),
	}
	return buildResult(recovered, true)
}

// EmptyResult returns the canonical empty result: all arrays present and
// empty, metrics at their defaults.
func EmptyResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		GrammarSuggestions:     []models.Suggestion{},
		StyleSuggestions:       []models.Suggestion{},
		ReadabilitySuggestions: []models.Suggestion{},
		ReadabilityMetrics:     defaultMetrics(),
	}
}

// rawResponse mirrors the response contract loosely: suggestion entries
// stay raw so malformed ones can be dropped individually.
type rawResponse struct {
	GrammarSuggestions     []json.RawMessage `json:"grammarSuggestions"`
	StyleSuggestions       []json.RawMessage `json:"styleSuggestions"`
	ReadabilitySuggestions []json.RawMessage `json:"readabilitySuggestions"`
	ReadabilityMetrics     map[string]any    `json:"readabilityMetrics"`
}

func buildResult(decoded rawResponse, partial bool) *models.AnalysisResult {
	result := &models.AnalysisResult{
		GrammarSuggestions:     sanitizeList(decoded.GrammarSuggestions, "grammar"),
		StyleSuggestions:       sanitizeList(decoded.StyleSuggestions, "style"),
		ReadabilitySuggestions: sanitizeList(decoded.ReadabilitySuggestions, "readability"),
		ReadabilityMetrics:     sanitizeMetrics(decoded.ReadabilityMetrics),
		Partial:                partial,
	}
	result.CountSuggestions()
	return result
}

// stripFences removes markdown code fencing (```json ... ```) if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONSpan slices between the first '{' and last '}', tolerating
// leading or trailing prose around the JSON object.
func extractJSONSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// recoverArray locates the value of `"key": [...]` by bracket matching
// and decodes it in isolation. Arrays that still fail to parse become
// nil, not request-failing.
func recoverArray(s, key string) []json.RawMessage {
	idx := strings.Index(s, `"`+key+`"`)
	if idx < 0 {
		return nil
	}
	rest := s[idx+len(key)+2:]
	open := strings.Index(rest, "[")
	if open < 0 {
		return nil
	}
	// Anything but whitespace and the colon between key and bracket
	// means this match is not the key's value.
	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[:open]), ":")) != "" {
		return nil
	}

	span := balancedSpan(rest[open:])
	if span == "" {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(span), &entries); err != nil {
		return nil
	}
	return entries
}

// balancedSpan returns the prefix of s (which starts with '[') up to the
// matching close bracket, respecting nesting and string literals.
// Returns "" if the array is truncated.
func balancedSpan(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// sanitizeList validates each raw entry independently: non-objects and
// entries missing required fields are dropped, numeric fields are
// coerced and clamped, and the list is truncated to MaxSuggestions.
func sanitizeList(entries []json.RawMessage, kind string) []models.Suggestion {
	out := []models.Suggestion{}
	for _, raw := range entries {
		if len(out) >= MaxSuggestions {
			break
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		s, ok := sanitizeSuggestion(fields, kind)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sanitizeSuggestion(fields map[string]any, kind string) (models.Suggestion, bool) {
	id := str(fields["id"])
	original := str(fields["originalText"])
	suggested := str(fields["suggestedText"])
	if id == "" || original == "" || suggested == "" {
		return models.Suggestion{}, false
	}

	start := clampInt(num(fields["startOffset"], 0), 0)
	end := clampInt(num(fields["endOffset"], 0), 0)
	if end < start {
		end = start
	}

	confidence := num(fields["confidence"], defaultConfidence)
	confidence = clampFloat(confidence, 0, 1)

	s := models.Suggestion{
		ID:            id,
		Severity:      models.ParseSeverity(str(fields["severity"])),
		StartOffset:   start,
		EndOffset:     end,
		OriginalText:  original,
		SuggestedText: suggested,
		Explanation:   str(fields["explanation"]),
		Category:      str(fields["category"]),
		Confidence:    confidence,
	}

	switch kind {
	case "grammar":
		s.Rule = str(fields["rule"])
	case "style":
		s.StyleGoal = str(fields["styleGoal"])
	case "readability":
		s.MetricName = str(fields["metricName"])
	}
	return s, true
}

// metricRange defines the plausible range and default for one metric.
type metricRange struct {
	min, max, def float64
}

var metricRanges = map[string]metricRange{
	"fleschScore":       {0, 100, 50},
	"gradeLevel":        {0, 20, 8},
	"avgSentenceLength": {0, 200, 15},
	"avgWordLength":     {0, 50, 5},
	"passiveVoiceRatio": {0, 1, 0},
	"complexWordRatio":  {0, 1, 0},
}

// sanitizeMetrics clamps each metric independently to its documented
// range, substituting defaults for missing or invalid values. A single
// bad field never fails the parse.
func sanitizeMetrics(fields map[string]any) models.ReadabilityMetrics {
	get := func(key string) float64 {
		r := metricRanges[key]
		return clampFloat(num(fields[key], r.def), r.min, r.max)
	}
	return models.ReadabilityMetrics{
		FleschScore:       get("fleschScore"),
		GradeLevel:        get("gradeLevel"),
		AvgSentenceLength: get("avgSentenceLength"),
		AvgWordLength:     get("avgWordLength"),
		PassiveVoiceRatio: get("passiveVoiceRatio"),
		ComplexWordRatio:  get("complexWordRatio"),
	}
}

func defaultMetrics() models.ReadabilityMetrics {
	return sanitizeMetrics(nil)
}

// str coerces a JSON value to string, tolerating absent and non-string
// values as empty.
func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// num coerces a JSON value to float64. Models occasionally emit numbers
// as strings; those are accepted too.
func num(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err == nil {
			return f
		}
	}
	return def
}

func clampInt(f float64, min int) int {
	n := int(f)
	if n < min {
		return min
	}
	return n
}

func clampFloat(f, min, max float64) float64 {
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
