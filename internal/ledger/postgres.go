package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresLedger persists records in attendance_records. The
// UNIQUE (student_id, day) constraint makes Append atomic per day.
type PostgresLedger struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresLedger creates a ledger over an open pgx-backed sql.DB.
func NewPostgresLedger(db *sql.DB, loc *time.Location) *PostgresLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresLedger{db: db, loc: loc}
}

const recordColumns = `seq, id, student_id, day, time_of_day, latitude, longitude, status, nonce, scanned_by, recorded_at`

func (l *PostgresLedger) Append(ctx context.Context, e Entry) (Record, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	local := e.Timestamp.In(l.loc)
	rec := Record{
		ID:         uuid.NewString(),
		StudentID:  e.StudentID,
		Date:       local.Format(DateLayout),
		TimeOfDay:  local.Format(TimeLayout),
		Location:   e.Location,
		Status:     StatusPresent,
		Nonce:      e.Nonce,
		ScannedBy:  e.ScannedBy,
		RecordedAt: e.Timestamp.UTC(),
	}

	row := l.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, day, time_of_day, latitude, longitude, status, nonce, scanned_by, recorded_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, day) DO NOTHING
		RETURNING seq
	`, rec.ID, rec.StudentID, rec.Date, rec.TimeOfDay, rec.Location.Latitude, rec.Location.Longitude,
		rec.Status, rec.Nonce, rec.ScannedBy, rec.RecordedAt)
	if err := row.Scan(&rec.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrDuplicateForDay
		}
		return Record{}, fmt.Errorf("insert attendance record: %w", err)
	}
	return rec, nil
}

func (l *PostgresLedger) HasRecordFor(ctx context.Context, studentID, date string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_records WHERE student_id = $1 AND day = $2::date)
	`, studentID, date).Scan(&exists)
	return exists, err
}

func (l *PostgresLedger) ListAll(ctx context.Context) ([]Record, error) {
	return l.query(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY seq`)
}

func (l *PostgresLedger) ListFor(ctx context.Context, studentID string) ([]Record, error) {
	return l.query(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE student_id = $1 ORDER BY seq`, studentID)
}

func (l *PostgresLedger) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			r   Record
			day time.Time
		)
		if err := rows.Scan(&r.Seq, &r.ID, &r.StudentID, &day, &r.TimeOfDay, &r.Location.Latitude, &r.Location.Longitude,
			&r.Status, &r.Nonce, &r.ScannedBy, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Date = day.Format(DateLayout)
		r.RecordedAt = r.RecordedAt.UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}
