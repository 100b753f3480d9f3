package audit

import (
	"context"
	"database/sql"
)

// PostgresSink writes events to scan_audit. Replayed events are ignored.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Ingest(ctx context.Context, evt Event) error {
	var recordID any
	if evt.RecordID != "" {
		recordID = evt.RecordID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_audit (id, student_id, actor_id, outcome, record_id, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.StudentID, evt.ActorID, evt.Outcome, recordID, evt.ScannedAt)
	return err
}
