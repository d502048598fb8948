package repository

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/draftwise/draftwise-api/internal/models"
)

func testReport(userHash string, severity models.ReportSeverity, createdAt time.Time) *models.ErrorReport {
	return &models.ErrorReport{
		ID:           ulid.Make().String(),
		UserHash:     userHash,
		Category:     "api_error",
		Severity:     severity,
		Message:      "provider returned 500",
		RetryAttempt: 1,
		CreatedAt:    createdAt,
	}
}

func TestErrorReportInsertAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := testReport("user-a", models.ReportSeverityHigh, now)
	if err := repos.ErrorReports.Insert(ctx, report); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repos.ErrorReports.GetByID(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected report")
	}
	if got.Severity != models.ReportSeverityHigh || got.Category != "api_error" {
		t.Errorf("unexpected report: %+v", got)
	}
	if got.Resolution != "" || got.ResolvedAt != nil {
		t.Error("new report must have no resolution")
	}
}

func TestErrorReportAttachResolution(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := testReport("user-a", models.ReportSeverityMedium, now)
	if err := repos.ErrorReports.Insert(ctx, report); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	resolvedAt := now.Add(5 * time.Second)
	if err := repos.ErrorReports.AttachResolution(ctx, report.ID, "fallback_served", resolvedAt); err != nil {
		t.Fatalf("AttachResolution failed: %v", err)
	}

	got, err := repos.ErrorReports.GetByID(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Resolution != "fallback_served" {
		t.Errorf("resolution = %q, want fallback_served", got.Resolution)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
		t.Errorf("resolved at = %v, want %v", got.ResolvedAt, resolvedAt)
	}

	// A second resolution attempt is refused; the record stays as is.
	if err := repos.ErrorReports.AttachResolution(ctx, report.ID, "retried", now.Add(time.Minute)); err == nil {
		t.Error("expected error resolving an already-resolved report")
	}
	got, _ = repos.ErrorReports.GetByID(ctx, report.ID)
	if got.Resolution != "fallback_served" {
		t.Errorf("resolution changed to %q", got.Resolution)
	}
}

func TestErrorReportListByUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		report := testReport("user-a", models.ReportSeverityLow, now.Add(time.Duration(i)*time.Second))
		if err := repos.ErrorReports.Insert(ctx, report); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := repos.ErrorReports.Insert(ctx, testReport("user-b", models.ReportSeverityLow, now)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	reports, err := repos.ErrorReports.ListByUser(ctx, "user-a", 3)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	// Newest first.
	if !reports[0].CreatedAt.After(reports[1].CreatedAt) {
		t.Error("reports must be ordered newest first")
	}
	for _, r := range reports {
		if r.UserHash != "user-a" {
			t.Errorf("report for wrong user: %s", r.UserHash)
		}
	}
}

func TestErrorReportCountBySeverity(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, sev := range []models.ReportSeverity{
		models.ReportSeverityHigh, models.ReportSeverityHigh, models.ReportSeverityLow,
	} {
		if err := repos.ErrorReports.Insert(ctx, testReport("user-a", sev, now)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	// Outside the counting window.
	if err := repos.ErrorReports.Insert(ctx, testReport("user-a", models.ReportSeverityCritical, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	counts, err := repos.ErrorReports.CountBySeverity(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountBySeverity failed: %v", err)
	}
	if counts[models.ReportSeverityHigh] != 2 {
		t.Errorf("high = %d, want 2", counts[models.ReportSeverityHigh])
	}
	if counts[models.ReportSeverityLow] != 1 {
		t.Errorf("low = %d, want 1", counts[models.ReportSeverityLow])
	}
	if counts[models.ReportSeverityCritical] != 0 {
		t.Errorf("critical = %d, want 0", counts[models.ReportSeverityCritical])
	}
}
