package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// SQLiteCacheRepository implements CacheRepository using SQLite.
type SQLiteCacheRepository struct {
	db *sql.DB
}

// NewSQLiteCacheRepository creates a new analysis cache repository.
func NewSQLiteCacheRepository(db *sql.DB) *SQLiteCacheRepository {
	return &SQLiteCacheRepository{db: db}
}

// Lookup returns the cached entry for (userHash, fingerprint), or nil on
// miss. Expiry is lazy: an expired row is deleted on read and reported
// as a miss.
func (r *SQLiteCacheRepository) Lookup(ctx context.Context, userHash, fingerprint string, now time.Time) (*models.CacheEntry, error) {
	var resultJSON, cachedAt, expiresAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT result_json, cached_at, expires_at FROM analysis_cache
		WHERE user_hash = ? AND fingerprint = ?
	`, userHash, fingerprint).Scan(&resultJSON, &cachedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup cache entry: %w", err)
	}

	entry := &models.CacheEntry{
		UserHash:    userHash,
		Fingerprint: fingerprint,
	}
	entry.CachedAt, err = time.Parse(time.RFC3339, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached_at: %w", err)
	}
	entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	if entry.Expired(now) {
		_, _ = r.db.ExecContext(ctx, `
			DELETE FROM analysis_cache WHERE user_hash = ? AND fingerprint = ?
		`, userHash, fingerprint)
		return nil, nil
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		// A corrupt row is unusable; drop it and report a miss.
		_, _ = r.db.ExecContext(ctx, `
			DELETE FROM analysis_cache WHERE user_hash = ? AND fingerprint = ?
		`, userHash, fingerprint)
		return nil, nil
	}
	entry.Result = &result

	return entry, nil
}

// Store upserts a cache entry. The conditional update leaves a live row
// untouched: a concurrent writer that got there first wins, and the
// losing result is simply discarded.
func (r *SQLiteCacheRepository) Store(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Result == nil {
		return fmt.Errorf("cache entry has no result")
	}

	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (user_hash, fingerprint, result_json, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_hash, fingerprint) DO UPDATE SET
			result_json = excluded.result_json,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
		WHERE analysis_cache.expires_at <= excluded.cached_at
	`, entry.UserHash, entry.Fingerprint, string(resultJSON),
		entry.CachedAt.UTC().Format(time.RFC3339),
		entry.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// DeleteExpired removes entries past their TTL.
func (r *SQLiteCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM analysis_cache WHERE expires_at <= ?
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return result.RowsAffected()
}

// CountByUser returns the number of live entries for a user.
func (r *SQLiteCacheRepository) CountByUser(ctx context.Context, userHash string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_cache WHERE user_hash = ? AND expires_at > ?
	`, userHash, now.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}
