package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresDirectory reads the students table.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a directory over an open pgx-backed sql.DB.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, studentID string) (Student, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, roll_no, name, email, department, created_at
		FROM students WHERE id = $1
	`, studentID)
	var s Student
	if err := row.Scan(&s.ID, &s.RollNo, &s.Name, &s.Email, &s.Department, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("resolve student %s: %w", studentID, err)
	}
	return s, nil
}

func (d *PostgresDirectory) List(ctx context.Context) ([]Student, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, roll_no, name, email, department, created_at
		FROM students
		ORDER BY roll_no
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.RollNo, &s.Name, &s.Email, &s.Department, &s.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Upsert creates or updates a student.
func (d *PostgresDirectory) Upsert(ctx context.Context, s Student) error {
	if s.ID == "" || s.RollNo == "" {
		return errors.New("student id and roll number required")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO students (id, roll_no, name, email, department)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			roll_no = EXCLUDED.roll_no,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			department = EXCLUDED.department
	`, s.ID, s.RollNo, s.Name, s.Email, s.Department)
	return err
}
