package repository

import (
	"context"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := testEntry("user-a", "fp-1", now, 24*time.Hour, 2)
	if err := repo.Store(ctx, entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := repo.Lookup(ctx, "user-a", "fp-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Result.TotalSuggestions != 2 {
		t.Errorf("total suggestions = %d, want 2", got.Result.TotalSuggestions)
	}
	if !got.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("expires at = %v, want %v", got.ExpiresAt, now.Add(24*time.Hour))
	}
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)

	got, err := repo.Lookup(context.Background(), "user-a", "nope", time.Now())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Error("expected miss for unknown key")
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := testEntry("user-a", "fp-1", now, time.Hour, 1)
	if err := repo.Store(ctx, entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Past the TTL the row reads as a miss and is removed.
	got, err := repo.Lookup(ctx, "user-a", "fp-1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Fatal("expired entry must read as a miss")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM analysis_cache").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expired row should be deleted on read, %d rows remain", count)
	}
}

func TestCacheIsolatesUsers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := testEntry("user-a", "fp-1", now, 24*time.Hour, 1)
	if err := repo.Store(ctx, entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Same fingerprint, different user: must miss.
	got, err := repo.Lookup(ctx, "user-b", "fp-1", now)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Error("cache entries must never be shared across users")
	}
}

func TestCacheStoreDoesNotClobberLiveEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testEntry("user-a", "fp-1", now, 24*time.Hour, 1)
	if err := repo.Store(ctx, first); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// A second write for the same key while the first is live loses.
	second := testEntry("user-a", "fp-1", now.Add(time.Minute), 24*time.Hour, 3)
	if err := repo.Store(ctx, second); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := repo.Lookup(ctx, "user-a", "fp-1", now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Result.TotalSuggestions != 1 {
		t.Errorf("live entry was overwritten: total = %d, want 1", got.Result.TotalSuggestions)
	}
}

func TestCacheStoreReplacesExpiredEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testEntry("user-a", "fp-1", now, time.Hour, 1)
	if err := repo.Store(ctx, first); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// After the first entry expires, a new write takes the slot.
	later := now.Add(2 * time.Hour)
	second := testEntry("user-a", "fp-1", later, 24*time.Hour, 3)
	if err := repo.Store(ctx, second); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := repo.Lookup(ctx, "user-a", "fp-1", later.Add(time.Minute))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Result.TotalSuggestions != 3 {
		t.Errorf("expired entry should be replaced: total = %d, want 3", got.Result.TotalSuggestions)
	}
}

func TestCacheDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Store(ctx, testEntry("user-a", "fp-old", now.Add(-25*time.Hour), 24*time.Hour, 1)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := repo.Store(ctx, testEntry("user-a", "fp-new", now, 24*time.Hour, 1)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := repo.CountByUser(ctx, "user-a", now)
	if err != nil {
		t.Fatalf("CountByUser failed: %v", err)
	}
	if count != 1 {
		t.Errorf("live count = %d, want 1", count)
	}
}

func TestCacheCorruptRowReadsAsMiss(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteCacheRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.Exec(`
		INSERT INTO analysis_cache (user_hash, fingerprint, result_json, cached_at, expires_at)
		VALUES ('user-a', 'fp-bad', 'not json', ?, ?)
	`, now.Format(time.RFC3339), now.Add(24*time.Hour).Format(time.RFC3339))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := repo.Lookup(ctx, "user-a", "fp-bad", now)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Error("corrupt row must read as a miss")
	}
}
