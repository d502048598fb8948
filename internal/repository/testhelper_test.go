package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/draftwise/draftwise-api/internal/database/migrations"
	"github.com/draftwise/draftwise-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be
// cleaned up when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// testResult builds a small but non-trivial analysis result for cache tests.
func testResult(suggestions int) *models.AnalysisResult {
	result := &models.AnalysisResult{
		GrammarSuggestions:     []models.Suggestion{},
		StyleSuggestions:       []models.Suggestion{},
		ReadabilitySuggestions: []models.Suggestion{},
		ReadabilityMetrics:     models.ReadabilityMetrics{FleschScore: 70, GradeLevel: 8},
	}
	for i := 0; i < suggestions; i++ {
		result.GrammarSuggestions = append(result.GrammarSuggestions, models.Suggestion{
			ID:            "g" + string(rune('a'+i)),
			Severity:      models.SeverityLow,
			OriginalText:  "teh",
			SuggestedText: "the",
			Confidence:    0.9,
		})
	}
	result.CountSuggestions()
	return result
}

// testEntry builds a cache entry with the given TTL relative to now.
func testEntry(userHash, fingerprint string, now time.Time, ttl time.Duration, suggestions int) *models.CacheEntry {
	return &models.CacheEntry{
		UserHash:    userHash,
		Fingerprint: fingerprint,
		Result:      testResult(suggestions),
		CachedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
}
