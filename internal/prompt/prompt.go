// Package prompt composes the model-facing instructions for an analysis
// request. Building is pure: no network, no state, fully determined by
// the analysis options.
package prompt

import (
	"fmt"
	"strings"

	"github.com/draftwise/draftwise-api/internal/models"
)

// responseContract is appended verbatim to every user prompt so the
// parser's assumptions about the response shape always hold.
const responseContract = `
## Output Format (JSON only, no markdown)

Respond with a single JSON object with exactly these four top-level keys:

{
  "grammarSuggestions": [],
  "styleSuggestions": [],
  "readabilitySuggestions": [],
  "readabilityMetrics": {
    "fleschScore": 0,
    "gradeLevel": 0,
    "avgSentenceLength": 0,
    "avgWordLength": 0,
    "passiveVoiceRatio": 0,
    "complexWordRatio": 0
  }
}

Each suggestion object must have: id, severity ("low"|"medium"|"high"),
startOffset, endOffset, originalText, suggestedText, explanation, category,
confidence (0-1). Leave disabled categories as empty arrays. Do not include
commentary outside the JSON object.
`

// Build returns the system and user prompts for the given text and
// options. Disabled categories contribute nothing to either prompt so a
// grammar-only request never invites style commentary.
func Build(text string, opts models.AnalysisOptions) (systemPrompt, userPrompt string) {
	var sys strings.Builder
	sys.WriteString("You are a precise writing assistant. You analyze text and return structured suggestions as JSON. You never invent offsets: startOffset and endOffset index into the original text and originalText must match the span exactly.")

	if opts.AudienceLevel != "" {
		sys.WriteString(fmt.Sprintf(" The intended audience is %s readers.", opts.AudienceLevel))
	}
	if opts.DocumentType != "" {
		sys.WriteString(fmt.Sprintf(" The document is a %s; judge tone and conventions accordingly.", opts.DocumentType))
	}

	var usr strings.Builder
	usr.WriteString("Analyze the following text.\n\n## Text\n\n")
	usr.WriteString(text)
	usr.WriteString("\n\n## Analysis Categories\n")

	if opts.IncludeGrammar {
		usr.WriteString(`
### Grammar
Find grammatical errors: subject-verb agreement, tense consistency, article
usage, punctuation, sentence fragments. For each, set category to the rule
violated (e.g. "subject-verb agreement") and include a "rule" field naming it.
`)
	}
	if opts.IncludeStyle {
		usr.WriteString(`
### Style
Find style issues: wordiness, passive voice, redundancy, unclear antecedents,
weak verbs. For each, include a "styleGoal" field naming what the rewrite
improves (e.g. "conciseness").
`)
	}
	if opts.IncludeReadability {
		usr.WriteString(`
### Readability
Compute the readabilityMetrics object and suggest structural changes that
improve readability: splitting long sentences, simplifying complex words.
For each suggestion include a "metricName" field naming the metric it moves.
`)
	}

	usr.WriteString(responseContract)

	return sys.String(), usr.String()
}
