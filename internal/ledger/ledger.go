// Package ledger is the append-only record of accepted attendance scans.
package ledger

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrDuplicateForDay is returned by Append when the student already has a
// record for that calendar day.
var ErrDuplicateForDay = errors.New("attendance already recorded for day")

const (
	// DateLayout is the calendar-day key format.
	DateLayout = "2006-01-02"
	// TimeLayout is the time-of-day format stored with each record.
	TimeLayout = "15:04:05"
	// StatusPresent is the only status the core produces.
	StatusPresent = "present"
)

// Location is the scanner's reported position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite and within range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// Entry is an accepted scan waiting to be recorded.
type Entry struct {
	StudentID string
	Timestamp time.Time
	Location  Location
	Nonce     string
	ScannedBy string
}

// Record is one stored presence event. Records are never mutated.
type Record struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"-"`
	StudentID  string    `json:"studentId"`
	Date       string    `json:"date"`
	TimeOfDay  string    `json:"time"`
	Location   Location  `json:"location"`
	Status     string    `json:"status"`
	Nonce      string    `json:"-"`
	ScannedBy  string    `json:"scannedBy,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Ledger stores records keyed by (student, day) and in insertion order.
//
// Append performs the duplicate check and the insert as one atomic step
// per (student, day).
type Ledger interface {
	Append(ctx context.Context, e Entry) (Record, error)
	HasRecordFor(ctx context.Context, studentID, date string) (bool, error)
	ListAll(ctx context.Context) ([]Record, error)
	ListFor(ctx context.Context, studentID string) ([]Record, error)
}

// Day formats the calendar day of t in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

func dayKey(studentID, date string) string {
	return studentID + "|" + date
}
