package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// SQLiteErrorReportRepository implements ErrorReportRepository using SQLite.
type SQLiteErrorReportRepository struct {
	db *sql.DB
}

// NewSQLiteErrorReportRepository creates a new error report repository.
func NewSQLiteErrorReportRepository(db *sql.DB) *SQLiteErrorReportRepository {
	return &SQLiteErrorReportRepository{db: db}
}

// Insert writes a new report. Reports are immutable once written; the
// only later change is AttachResolution.
func (r *SQLiteErrorReportRepository) Insert(ctx context.Context, report *models.ErrorReport) error {
	if report.ID == "" {
		return fmt.Errorf("error report has no ID")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO error_reports (id, user_hash, category, severity, message, retry_attempt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.UserHash, report.Category, string(report.Severity),
		report.Message, report.RetryAttempt,
		report.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert error report: %w", err)
	}

	return nil
}

// AttachResolution records how a failure was ultimately resolved. A
// report that already carries a resolution is left unchanged.
func (r *SQLiteErrorReportRepository) AttachResolution(ctx context.Context, id, resolution string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE error_reports SET resolution = ?, resolved_at = ?
		WHERE id = ? AND resolution IS NULL
	`, resolution, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to attach resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("error report %s not found or already resolved", id)
	}
	return nil
}

// GetByID returns a single report.
func (r *SQLiteErrorReportRepository) GetByID(ctx context.Context, id string) (*models.ErrorReport, error) {
	report, err := scanReport(r.db.QueryRowContext(ctx, `
		SELECT id, user_hash, category, severity, message, retry_attempt, resolution, created_at, resolved_at
		FROM error_reports WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get error report: %w", err)
	}
	return report, nil
}

// ListByUser returns the most recent reports for a user.
func (r *SQLiteErrorReportRepository) ListByUser(ctx context.Context, userHash string, limit int) ([]*models.ErrorReport, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_hash, category, severity, message, retry_attempt, resolution, created_at, resolved_at
		FROM error_reports WHERE user_hash = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, userHash, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.ErrorReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// CountBySeverity returns report counts per severity since the cutoff.
func (r *SQLiteErrorReportRepository) CountBySeverity(ctx context.Context, since time.Time) (map[models.ReportSeverity]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM error_reports
		WHERE created_at >= ? GROUP BY severity
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to count error reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ReportSeverity]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[models.ReportSeverity(severity)] = count
	}

	return counts, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.ErrorReport, error) {
	var report models.ErrorReport
	var resolution, resolvedAt sql.NullString
	var severity, createdAt string

	err := row.Scan(&report.ID, &report.UserHash, &report.Category, &severity,
		&report.Message, &report.RetryAttempt, &resolution, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	report.Severity = models.ReportSeverity(severity)
	report.Resolution = resolution.String

	report.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if resolvedAt.Valid {
		t, err := time.Parse(time.RFC3339, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse resolved_at: %w", err)
		}
		report.ResolvedAt = &t
	}

	return &report, nil
}
