package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Records are keyed by studentId_date, so the primary key alone guarantees one
// record per student per day. No foreign key to students: attendance history
// outlives a student's removal from the roster.
const schema = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent_phone TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_active_name ON students(name) WHERE is_active;

CREATE TABLE IF NOT EXISTS attendance_records (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    student_name TEXT NOT NULL,
    date CHAR(10) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'NOT_MARKED',
    sms_sent BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT valid_status CHECK (status IN ('NOT_MARKED', 'PRESENT', 'ABSENT', 'HOLIDAY')),
    CONSTRAINT key_matches CHECK (id = student_id || '_' || date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records(date DESC);
CREATE INDEX IF NOT EXISTS idx_attendance_student_date ON attendance_records(student_id, date DESC);
`

// EnsureSchema creates the tables used by the record store when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
