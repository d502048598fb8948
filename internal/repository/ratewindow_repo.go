package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// WindowLimits defines the fixed-window quota per user.
type WindowLimits struct {
	Duration      time.Duration
	MaxRequests   int
	MaxCharacters int
}

// DefaultWindowLimits returns the gateway defaults: 100 requests and
// 1,000,000 characters per rolling hour window.
func DefaultWindowLimits() WindowLimits {
	return WindowLimits{
		Duration:      time.Hour,
		MaxRequests:   100,
		MaxCharacters: 1_000_000,
	}
}

// SQLiteRateWindowRepository implements RateWindowRepository using SQLite.
type SQLiteRateWindowRepository struct {
	db *sql.DB
}

// NewSQLiteRateWindowRepository creates a new rate window repository.
func NewSQLiteRateWindowRepository(db *sql.DB) *SQLiteRateWindowRepository {
	return &SQLiteRateWindowRepository{db: db}
}

// Check atomically admits or rejects one request. The whole
// read-modify-write runs inside a transaction: two concurrent requests
// from the same user serialize, so the counters never undercount.
func (r *SQLiteRateWindowRepository) Check(ctx context.Context, userHash string, charCount int, limits WindowLimits, now time.Time) (AdmissionDecision, error) {
	var decision AdmissionDecision

	if limits.Duration <= 0 {
		limits = DefaultWindowLimits()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decision, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Write before reading so the transaction holds the write lock for
	// its whole lifetime. A deferred transaction that reads first can
	// fail the read-to-write upgrade with SQLITE_BUSY under contention.
	// The placeholder row carries zero counts and consumes no quota.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_windows (user_hash, window_start, request_count, character_count, last_request)
		VALUES (?, ?, 0, 0, ?)
		ON CONFLICT(user_hash) DO UPDATE SET last_request = rate_windows.last_request
	`, userHash,
		now.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return decision, fmt.Errorf("failed to lock rate window: %w", err)
	}

	window, err := scanWindow(tx.QueryRowContext(ctx, `
		SELECT window_start, request_count, character_count, last_request
		FROM rate_windows WHERE user_hash = ?
	`, userHash))
	if err != nil {
		return decision, fmt.Errorf("failed to load rate window: %w", err)
	}

	if now.Sub(window.WindowStart) >= limits.Duration {
		window = models.RateWindow{WindowStart: now}
	}
	window.UserHash = userHash

	// The checks run against zeroed counters on a fresh window too: a
	// request bigger than the whole character budget is rejected no
	// matter how empty the window is.
	if window.RequestCount+1 > limits.MaxRequests ||
		window.CharacterCount+charCount > limits.MaxCharacters {
		decision.Window = window
		decision.RetryAfter = secondsUntil(window.WindowStart.Add(limits.Duration), now)
		// Rejections consume no quota; the counters stay untouched.
		return decision, tx.Commit()
	}

	window.RequestCount++
	window.CharacterCount += charCount
	window.LastRequest = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_windows (user_hash, window_start, request_count, character_count, last_request)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_hash) DO UPDATE SET
			window_start = excluded.window_start,
			request_count = excluded.request_count,
			character_count = excluded.character_count,
			last_request = excluded.last_request
	`, userHash,
		window.WindowStart.UTC().Format(time.RFC3339),
		window.RequestCount,
		window.CharacterCount,
		window.LastRequest.UTC().Format(time.RFC3339))
	if err != nil {
		return decision, fmt.Errorf("failed to update rate window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decision, fmt.Errorf("failed to commit rate window: %w", err)
	}

	decision.Allowed = true
	decision.Window = window
	return decision, nil
}

// Get returns the current window without consuming quota. An expired or
// missing window reads as a zeroed window starting now.
func (r *SQLiteRateWindowRepository) Get(ctx context.Context, userHash string, windowDuration time.Duration, now time.Time) (*models.RateWindow, error) {
	if windowDuration <= 0 {
		windowDuration = DefaultWindowLimits().Duration
	}
	window, err := scanWindow(r.db.QueryRowContext(ctx, `
		SELECT window_start, request_count, character_count, last_request
		FROM rate_windows WHERE user_hash = ?
	`, userHash))
	if err == sql.ErrNoRows || (err == nil && now.Sub(window.WindowStart) >= windowDuration) {
		return &models.RateWindow{UserHash: userHash, WindowStart: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rate window: %w", err)
	}
	window.UserHash = userHash
	return &window, nil
}

// DeleteIdle removes windows whose last request predates the cutoff.
func (r *SQLiteRateWindowRepository) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM rate_windows WHERE last_request < ?
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle windows: %w", err)
	}
	return result.RowsAffected()
}

func scanWindow(row *sql.Row) (models.RateWindow, error) {
	var window models.RateWindow
	var windowStart, lastRequest string

	err := row.Scan(&windowStart, &window.RequestCount, &window.CharacterCount, &lastRequest)
	if err != nil {
		return window, err
	}

	window.WindowStart, err = time.Parse(time.RFC3339, windowStart)
	if err != nil {
		return window, fmt.Errorf("failed to parse window_start: %w", err)
	}
	window.LastRequest, err = time.Parse(time.RFC3339, lastRequest)
	if err != nil {
		return window, fmt.Errorf("failed to parse last_request: %w", err)
	}
	return window, nil
}

// secondsUntil returns whole seconds until t, rounded up, at least 1.
func secondsUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
