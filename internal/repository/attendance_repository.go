package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/models"
)

const recordColumns = `id, student_id, student_name, date, status, sms_sent, timestamp`

// AttendanceRepository handles persistence for daily attendance records.
type AttendanceRepository struct {
	db     *sqlx.DB
	feed   ChangeFeed
	logger *zap.Logger
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB, feed ChangeFeed, logger *zap.Logger) *AttendanceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceRepository{db: db, feed: feed, logger: logger}
}

// FindByKey returns the record stored under key or sql.ErrNoRows.
func (r *AttendanceRepository) FindByKey(ctx context.Context, key string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, key); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert writes a record in one statement. sms_sent is OR-ed with the stored
// value so an upsert can never clear it.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	record.ID = models.RecordKey(record.StudentID, record.Date)
	query := `INSERT INTO attendance_records (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET student_name = EXCLUDED.student_name, status = EXCLUDED.status,
    sms_sent = attendance_records.sms_sent OR EXCLUDED.sms_sent, timestamp = EXCLUDED.timestamp
RETURNING ` + recordColumns
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.StudentName, record.Date, record.Status, record.SMSSent, record.Timestamp); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	r.announce(ctx)
	return &stored, nil
}

// BatchCreateIfAbsent inserts the records that do not exist yet in one
// transaction and returns how many were created.
func (r *AttendanceRepository) BatchCreateIfAbsent(ctx context.Context, records []models.AttendanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()
	query := `INSERT INTO attendance_records (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	created := 0
	for i := range records {
		rec := &records[i]
		rec.ID = models.RecordKey(rec.StudentID, rec.Date)
		res, err := tx.ExecContext(ctx, query, rec.ID, rec.StudentID, rec.StudentName, rec.Date, rec.Status, rec.SMSSent, rec.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("batch create attendance %s: %w", rec.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("batch create attendance %s: %w", rec.ID, err)
		}
		created += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch attendance: %w", err)
	}
	commit = true
	if created > 0 {
		r.announce(ctx)
	}
	return created, nil
}

// MarkNotified flags the record as having triggered its parent notification.
func (r *AttendanceRepository) MarkNotified(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_records SET sms_sent = TRUE WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark notified: record %s not found", key)
	}
	r.announce(ctx)
	return nil
}

// HasAnyRecordForDate reports whether any record exists for date.
func (r *AttendanceRepository) HasAnyRecordForDate(ctx context.Context, date string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE date = $1)`, date); err != nil {
		return false, fmt.Errorf("check attendance date: %w", err)
	}
	return exists, nil
}

// ListByDate returns a day's records ordered by student name.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE date = $1 ORDER BY student_name ASC`
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return records, nil
}

// ListDates returns the distinct dates holding records, newest first.
func (r *AttendanceRepository) ListDates(ctx context.Context) ([]string, error) {
	dates := []string{}
	if err := r.db.SelectContext(ctx, &dates, `SELECT DISTINCT date FROM attendance_records ORDER BY date DESC`); err != nil {
		return nil, fmt.Errorf("list attendance dates: %w", err)
	}
	return dates, nil
}

// ListByStudent returns a student's full history, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE student_id = $1 ORDER BY date DESC`
	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return records, nil
}

// WatchByDate streams the records of date.
func (r *AttendanceRepository) WatchByDate(ctx context.Context, date string) <-chan Snapshot[[]models.AttendanceRecord] {
	return Watch(ctx, r.feed, TopicAttendance, func(ctx context.Context) ([]models.AttendanceRecord, error) {
		return r.ListByDate(ctx, date)
	})
}

// WatchDates streams the distinct attendance dates.
func (r *AttendanceRepository) WatchDates(ctx context.Context) <-chan Snapshot[[]string] {
	return Watch(ctx, r.feed, TopicAttendance, r.ListDates)
}

// WatchStudentHistory streams a student's records.
func (r *AttendanceRepository) WatchStudentHistory(ctx context.Context, studentID string) <-chan Snapshot[[]models.AttendanceRecord] {
	return Watch(ctx, r.feed, TopicAttendance, func(ctx context.Context) ([]models.AttendanceRecord, error) {
		return r.ListByStudent(ctx, studentID)
	})
}

func (r *AttendanceRepository) announce(ctx context.Context) {
	if err := publish(ctx, r.feed, TopicAttendance); err != nil {
		r.logger.Warn("publish attendance change failed", zap.Error(err))
	}
}
