package fingerprint

import (
	"testing"

	"github.com/draftwise/draftwise-api/internal/models"
)

func TestComputeDeterministic(t *testing.T) {
	opts := models.AnalysisOptions{IncludeGrammar: true, AudienceLevel: models.AudienceGeneral}

	a := Compute("The students goes to library.", opts)
	b := Compute("The students goes to library.", opts)

	if a != b {
		t.Errorf("fingerprint not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(a))
	}
}

func TestComputeChangesWithInput(t *testing.T) {
	base := models.AnalysisOptions{IncludeGrammar: true}
	baseFP := Compute("some text", base)

	tests := []struct {
		name string
		text string
		opts models.AnalysisOptions
	}{
		{"text change", "some other text", base},
		{"grammar flag", "some text", models.AnalysisOptions{IncludeGrammar: false, IncludeStyle: true}},
		{"style flag", "some text", models.AnalysisOptions{IncludeGrammar: true, IncludeStyle: true}},
		{"readability flag", "some text", models.AnalysisOptions{IncludeGrammar: true, IncludeReadability: true}},
		{"audience", "some text", models.AnalysisOptions{IncludeGrammar: true, AudienceLevel: models.AudienceAcademic}},
		{"document type", "some text", models.AnalysisOptions{IncludeGrammar: true, DocumentType: models.DocumentEmail}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fp := Compute(tt.text, tt.opts); fp == baseFP {
				t.Errorf("expected fingerprint to change for %s", tt.name)
			}
		})
	}
}

func TestComputeFieldBoundaries(t *testing.T) {
	// Length prefix prevents text/option content from sliding across
	// the separator and colliding.
	a := Compute("abc|", models.AnalysisOptions{IncludeGrammar: true})
	b := Compute("abc", models.AnalysisOptions{IncludeGrammar: true})
	if a == b {
		t.Error("expected distinct fingerprints for texts differing by separator char")
	}
}

func TestComputeIgnoresIrrelevantMetadata(t *testing.T) {
	// UserID and other request metadata are not part of the digest;
	// identical content from different callers shares a fingerprint.
	opts := models.AnalysisOptions{IncludeStyle: true}
	if Compute("hello", opts) != Compute("hello", opts) {
		t.Error("fingerprint must depend only on text and options")
	}
}
