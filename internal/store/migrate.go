package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		roll_no     TEXT UNIQUE NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		email       TEXT NOT NULL DEFAULT '',
		department  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		seq          BIGSERIAL PRIMARY KEY,
		id           TEXT UNIQUE NOT NULL,
		student_id   TEXT NOT NULL,
		day          DATE NOT NULL,
		time_of_day  TEXT NOT NULL,
		latitude     DOUBLE PRECISION NOT NULL,
		longitude    DOUBLE PRECISION NOT NULL,
		status       TEXT NOT NULL DEFAULT 'present',
		nonce        TEXT NOT NULL,
		scanned_by   TEXT NOT NULL DEFAULT '',
		recorded_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (student_id, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_student ON attendance_records (student_id, seq)`,
	`CREATE TABLE IF NOT EXISTS scan_audit (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL DEFAULT '',
		actor_id    TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL,
		record_id   TEXT,
		scanned_at  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_audit_scanned_at ON scan_audit (scanned_at)`,
}

// Migrate creates the tables the service needs. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
