// Package directory resolves student identities. The attendance core only
// reads from it.
package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a student id does not resolve.
var ErrNotFound = errors.New("student not found")

// Student is the identity a credential and attendance record point at.
type Student struct {
	ID         string    `json:"id"`
	RollNo     string    `json:"rollNo"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Directory looks students up by id.
type Directory interface {
	Resolve(ctx context.Context, studentID string) (Student, error)
	List(ctx context.Context) ([]Student, error)
}

// MemoryDirectory is a fixed roster held in memory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	students map[string]Student
}

// NewMemoryDirectory builds a directory from the given roster.
func NewMemoryDirectory(students ...Student) *MemoryDirectory {
	d := &MemoryDirectory{students: make(map[string]Student, len(students))}
	for _, s := range students {
		_ = d.Add(s)
	}
	return d
}

// Add registers or replaces a student.
func (d *MemoryDirectory) Add(s Student) error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return errors.New("student id required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	d.mu.Lock()
	d.students[s.ID] = s
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) Resolve(_ context.Context, studentID string) (Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.students[studentID]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

// List returns students ordered by roll number.
func (d *MemoryDirectory) List(_ context.Context) ([]Student, error) {
	d.mu.RLock()
	out := make([]Student, 0, len(d.students))
	for _, s := range d.students {
		out = append(out, s)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RollNo < out[j].RollNo })
	return out, nil
}

// DemoRoster is the single student the demo deployment ships with.
func DemoRoster() []Student {
	return []Student{{
		ID:         "1",
		RollNo:     "CS2021001",
		Name:       "John Doe",
		Email:      "john@college.edu",
		Department: "Computer Science",
	}}
}
