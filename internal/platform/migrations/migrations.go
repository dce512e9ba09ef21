// Package migrations applies the database schema required by the service.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are executed in order on startup. Each statement is idempotent
// so repeated application is safe.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS compression_jobs (
		id               TEXT PRIMARY KEY,
		filename         TEXT NOT NULL,
		quality          TEXT NOT NULL,
		target_bytes     BIGINT NOT NULL DEFAULT 0,
		dpi_used         INTEGER NOT NULL DEFAULT 0,
		original_bytes   BIGINT NOT NULL DEFAULT 0,
		compressed_bytes BIGINT NOT NULL DEFAULT 0,
		ratio            DOUBLE PRECISION NOT NULL DEFAULT 0,
		iterations       INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		error            TEXT NOT NULL DEFAULT '',
		duration_ms      BIGINT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_compression_jobs_created_at
		ON compression_jobs (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_compression_jobs_status
		ON compression_jobs (status)`,
}

// Apply executes all schema statements against the database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
