package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/keylock"
)

// MemoryLedger keeps records in process memory.
type MemoryLedger struct {
	loc   *time.Location
	locks keylock.Map

	mu      sync.RWMutex
	seq     int64
	records []Record
	byDay   map[string]int
}

// NewMemoryLedger creates an empty ledger that buckets days in loc.
func NewMemoryLedger(loc *time.Location) *MemoryLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryLedger{loc: loc, byDay: make(map[string]int)}
}

func (l *MemoryLedger) Append(_ context.Context, e Entry) (Record, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	local := e.Timestamp.In(l.loc)
	date := local.Format(DateLayout)
	key := dayKey(e.StudentID, date)

	defer l.locks.Lock(key)()

	l.mu.RLock()
	_, exists := l.byDay[key]
	l.mu.RUnlock()
	if exists {
		return Record{}, ErrDuplicateForDay
	}

	rec := Record{
		ID:         uuid.NewString(),
		StudentID:  e.StudentID,
		Date:       date,
		TimeOfDay:  local.Format(TimeLayout),
		Location:   e.Location,
		Status:     StatusPresent,
		Nonce:      e.Nonce,
		ScannedBy:  e.ScannedBy,
		RecordedAt: e.Timestamp.UTC(),
	}

	l.mu.Lock()
	l.seq++
	rec.Seq = l.seq
	l.byDay[key] = len(l.records)
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return rec, nil
}

func (l *MemoryLedger) HasRecordFor(_ context.Context, studentID, date string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byDay[dayKey(studentID, date)]
	return ok, nil
}

func (l *MemoryLedger) ListAll(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *MemoryLedger) ListFor(_ context.Context, studentID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Record
	for _, r := range l.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}
