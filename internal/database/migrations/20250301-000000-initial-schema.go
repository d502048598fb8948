package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250301-000000",
		Description: "Initial schema: rate windows, analysis cache, error reports",
		Up: []string{
			// Per-user fixed-window quota state. user_hash is an HMAC of
			// the authenticated user ID, never the raw ID.
			`CREATE TABLE IF NOT EXISTS rate_windows (
				user_hash TEXT PRIMARY KEY,
				window_start TEXT NOT NULL,
				request_count INTEGER NOT NULL DEFAULT 0,
				character_count INTEGER NOT NULL DEFAULT 0,
				last_request TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rate_windows_last_request ON rate_windows(last_request)`,

			// Durable result cache keyed by (user, content fingerprint).
			`CREATE TABLE IF NOT EXISTS analysis_cache (
				user_hash TEXT NOT NULL,
				fingerprint TEXT NOT NULL,
				result_json TEXT NOT NULL,
				cached_at TEXT NOT NULL,
				expires_at TEXT NOT NULL,
				PRIMARY KEY (user_hash, fingerprint)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at)`,

			// Audit records for failed analysis attempts. Rows are never
			// updated except to attach a resolution.
			`CREATE TABLE IF NOT EXISTS error_reports (
				id TEXT PRIMARY KEY,
				user_hash TEXT NOT NULL,
				category TEXT NOT NULL,
				severity TEXT NOT NULL,
				message TEXT NOT NULL,
				retry_attempt INTEGER NOT NULL DEFAULT 0,
				resolution TEXT,
				created_at TEXT NOT NULL,
				resolved_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_error_reports_user ON error_reports(user_hash, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_error_reports_severity ON error_reports(severity, created_at)`,
		},
	})
}
