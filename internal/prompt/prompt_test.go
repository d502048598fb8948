package prompt

import (
	"strings"
	"testing"

	"github.com/draftwise/draftwise-api/internal/models"
)

func TestBuildDeterministic(t *testing.T) {
	opts := models.AnalysisOptions{IncludeGrammar: true, IncludeStyle: true}

	sys1, usr1 := Build("some text", opts)
	sys2, usr2 := Build("some text", opts)

	if sys1 != sys2 || usr1 != usr2 {
		t.Error("Build must be deterministic for identical input")
	}
}

func TestBuildAlwaysAppendsResponseContract(t *testing.T) {
	tests := []struct {
		name string
		opts models.AnalysisOptions
	}{
		{"grammar only", models.AnalysisOptions{IncludeGrammar: true}},
		{"style only", models.AnalysisOptions{IncludeStyle: true}},
		{"all categories", models.AnalysisOptions{IncludeGrammar: true, IncludeStyle: true, IncludeReadability: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, usr := Build("text", tt.opts)
			for _, key := range []string{"grammarSuggestions", "styleSuggestions", "readabilitySuggestions", "readabilityMetrics"} {
				if !strings.Contains(usr, key) {
					t.Errorf("user prompt missing response contract key %q", key)
				}
			}
		})
	}
}

func TestBuildDisabledCategoriesContributeNothing(t *testing.T) {
	_, usr := Build("text", models.AnalysisOptions{IncludeGrammar: true})

	if !strings.Contains(usr, "### Grammar") {
		t.Error("expected grammar guidance for grammar-only request")
	}
	if strings.Contains(usr, "### Style") {
		t.Error("grammar-only request must not include style guidance")
	}
	if strings.Contains(usr, "### Readability") {
		t.Error("grammar-only request must not include readability guidance")
	}
}

func TestBuildAudienceAndDocumentType(t *testing.T) {
	sys, _ := Build("text", models.AnalysisOptions{
		IncludeGrammar: true,
		AudienceLevel:  models.AudienceAcademic,
		DocumentType:   models.DocumentReport,
	})

	if !strings.Contains(sys, "academic") {
		t.Error("system prompt should mention audience level")
	}
	if !strings.Contains(sys, "report") {
		t.Error("system prompt should mention document type")
	}

	plain, _ := Build("text", models.AnalysisOptions{IncludeGrammar: true})
	if strings.Contains(plain, "academic") {
		t.Error("unset audience must contribute nothing")
	}
}

func TestBuildIncludesText(t *testing.T) {
	_, usr := Build("The students goes to library.", models.AnalysisOptions{IncludeGrammar: true})
	if !strings.Contains(usr, "The students goes to library.") {
		t.Error("user prompt must embed the text under analysis")
	}
}
