// Package repository defines repository interfaces for data access.
// All user-keyed tables store an HMAC-derived user hash, never the raw
// authenticated user ID.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// AdmissionDecision is the outcome of a quota check.
type AdmissionDecision struct {
	Allowed bool `json:"allowed"`
	// RetryAfter is the whole seconds until the window resets; only set
	// on rejection.
	RetryAfter int `json:"retry_after,omitempty"`
	// Window is the post-decision window state.
	Window models.RateWindow `json:"window"`
}

// RateWindowRepository tracks per-user fixed-window request quotas.
// Limits are passed per call so runtime overrides apply immediately.
type RateWindowRepository interface {
	// Check atomically admits or rejects one request of charCount
	// characters. The read-modify-write runs in a single transaction so
	// concurrent requests from the same user serialize.
	Check(ctx context.Context, userHash string, charCount int, limits WindowLimits, now time.Time) (AdmissionDecision, error)
	// Get returns the current window for a user without consuming quota.
	Get(ctx context.Context, userHash string, windowDuration time.Duration, now time.Time) (*models.RateWindow, error)
	// DeleteIdle removes windows whose last request predates the cutoff.
	DeleteIdle(ctx context.Context, before time.Time) (int64, error)
}

// CacheRepository stores analysis results keyed by (user, fingerprint).
type CacheRepository interface {
	// Lookup returns the entry for the key, or nil on miss. Entries past
	// their TTL are treated as misses and removed lazily.
	Lookup(ctx context.Context, userHash, fingerprint string, now time.Time) (*models.CacheEntry, error)
	// Store upserts an entry. A live (unexpired) row for the same key is
	// left untouched; only missing or expired rows are written.
	Store(ctx context.Context, entry *models.CacheEntry) error
	// DeleteExpired removes entries past their TTL.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// CountByUser returns the number of live entries for a user.
	CountByUser(ctx context.Context, userHash string, now time.Time) (int, error)
}

// ErrorReportRepository stores audit records of failed analysis attempts.
type ErrorReportRepository interface {
	// Insert writes a new report. Reports are immutable once written.
	Insert(ctx context.Context, report *models.ErrorReport) error
	// AttachResolution records how a failure was ultimately resolved.
	// This is the only permitted update to a report.
	AttachResolution(ctx context.Context, id, resolution string, at time.Time) error
	// GetByID returns a single report.
	GetByID(ctx context.Context, id string) (*models.ErrorReport, error)
	// ListByUser returns the most recent reports for a user.
	ListByUser(ctx context.Context, userHash string, limit int) ([]*models.ErrorReport, error)
	// CountBySeverity returns report counts per severity since the cutoff.
	CountBySeverity(ctx context.Context, since time.Time) (map[models.ReportSeverity]int, error)
}

// Repositories aggregates all repository implementations.
type Repositories struct {
	RateWindows  RateWindowRepository
	Cache        CacheRepository
	ErrorReports ErrorReportRepository
}

// NewRepositories creates all repositories backed by the given database.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		RateWindows:  NewSQLiteRateWindowRepository(db),
		Cache:        NewSQLiteCacheRepository(db),
		ErrorReports: NewSQLiteErrorReportRepository(db),
	}
}
