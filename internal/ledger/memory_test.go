package ledger_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/ledger"
)

var (
	morning = time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	campus  = ledger.Location{Latitude: 12.9, Longitude: 77.6}
)

func TestAppendAssignsFields(t *testing.T) {
	l := ledger.NewMemoryLedger(time.UTC)

	rec, err := l.Append(context.Background(), ledger.Entry{
		StudentID: "s1",
		Timestamp: morning,
		Location:  campus,
		Nonce:     "n1",
		ScannedBy: "faculty-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "2026-03-02", rec.Date)
	assert.Equal(t, "09:15:00", rec.TimeOfDay)
	assert.Equal(t, ledger.StatusPresent, rec.Status)
	assert.Equal(t, campus, rec.Location)
	assert.Equal(t, "faculty-1", rec.ScannedBy)
}

func TestAppendRejectsSecondRecordSameDay(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger(time.UTC)

	_, err := l.Append(ctx, ledger.Entry{StudentID: "s1", Timestamp: morning, Location: campus})
	require.NoError(t, err)

	_, err = l.Append(ctx, ledger.Entry{StudentID: "s1", Timestamp: morning.Add(3 * time.Hour), Location: campus})
	assert.ErrorIs(t, err, ledger.ErrDuplicateForDay)

	_, err = l.Append(ctx, ledger.Entry{StudentID: "s1", Timestamp: morning.AddDate(0, 0, 1), Location: campus})
	assert.NoError(t, err)

	_, err = l.Append(ctx, ledger.Entry{StudentID: "s2", Timestamp: morning, Location: campus})
	assert.NoError(t, err)

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDayUsesLedgerTimezone(t *testing.T) {
	ctx := context.Background()
	kolkata := time.FixedZone("IST", 5*3600+1800)
	l := ledger.NewMemoryLedger(kolkata)

	// 20:00 UTC is already the next day in IST.
	rec, err := l.Append(ctx, ledger.Entry{StudentID: "s1", Timestamp: time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC), Location: campus})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", rec.Date)

	has, err := l.HasRecordFor(ctx, "s1", "2026-03-03")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = l.HasRecordFor(ctx, "s1", "2026-03-02")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger(time.UTC)
	ids := []string{"s3", "s1", "s2", "s1"}
	for i, sid := range ids {
		_, err := l.Append(ctx, ledger.Entry{StudentID: sid, Timestamp: morning.AddDate(0, 0, i), Location: campus})
		require.NoError(t, err)
	}

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, r := range all {
		assert.Equal(t, ids[i], r.StudentID)
		assert.Equal(t, int64(i+1), r.Seq)
	}

	mine, err := l.ListFor(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Less(t, mine[0].Seq, mine[1].Seq)

	none, err := l.ListFor(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConcurrentAppendSameDayHasOneWinner(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger(time.UTC)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(ctx, ledger.Entry{StudentID: "s1", Timestamp: morning.Add(time.Duration(i) * time.Second), Location: campus})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrDuplicateForDay):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dups)
}

func TestLocationValid(t *testing.T) {
	cases := []struct {
		loc  ledger.Location
		want bool
	}{
		{campus, true},
		{ledger.Location{Latitude: 90, Longitude: -180}, true},
		{ledger.Location{Latitude: 90.1, Longitude: 0}, false},
		{ledger.Location{Latitude: 0, Longitude: 180.5}, false},
		{ledger.Location{Latitude: math.NaN(), Longitude: 0}, false},
		{ledger.Location{Latitude: 0, Longitude: math.Inf(1)}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.loc.Valid(), "%+v", c.loc)
	}
}
