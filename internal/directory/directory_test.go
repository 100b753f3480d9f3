package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/directory"
)

func TestMemoryDirectoryResolve(t *testing.T) {
	ctx := context.Background()
	d := directory.NewMemoryDirectory(directory.DemoRoster()...)

	s, err := d.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "CS2021001", s.RollNo)
	assert.False(t, s.CreatedAt.IsZero())

	_, err = d.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestMemoryDirectoryListSortedByRoll(t *testing.T) {
	d := directory.NewMemoryDirectory(
		directory.Student{ID: "b", RollNo: "CS002"},
		directory.Student{ID: "a", RollNo: "CS001"},
	)

	list, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestMemoryDirectoryRejectsBlankID(t *testing.T) {
	d := directory.NewMemoryDirectory()
	assert.Error(t, d.Add(directory.Student{ID: "  "}))
}
