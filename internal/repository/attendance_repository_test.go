package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/attendance-api/internal/models"
)

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "student_name", "date", "status", "sms_sent", "timestamp"})
}

func TestAttendanceRepositoryUpsertKeepsNotifiedFlag(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("sms_sent = attendance_records.sms_sent OR EXCLUDED.sms_sent")).
		WithArgs("s1_2024-03-01", "s1", "Alice", "2024-03-01", "PRESENT", false, sqlmock.AnyArg()).
		WillReturnRows(recordRows().AddRow("s1_2024-03-01", "s1", "Alice", "2024-03-01", "PRESENT", true, now))

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID:   "s1",
		StudentName: "Alice",
		Date:        "2024-03-01",
		Status:      models.AttendanceStatusPresent,
		Timestamp:   now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	assert.True(t, stored.SMSSent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBatchCreateIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	now := time.Now()
	records := []models.AttendanceRecord{
		models.NewDayRecord(models.Student{ID: "s1", Name: "Alice"}, "2024-03-01", now),
		models.NewDayRecord(models.Student{ID: "s2", Name: "Bob"}, "2024-03-01", now),
	}

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("s1_2024-03-01", "s1", "Alice", "2024-03-01", "NOT_MARKED", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("s2_2024-03-01", "s2", "Bob", "2024-03-01", "NOT_MARKED", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	created, err := repo.BatchCreateIfAbsent(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBatchCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.BatchCreateIfAbsent(context.Background(), []models.AttendanceRecord{
		models.NewDayRecord(models.Student{ID: "s1", Name: "Alice"}, "2024-03-01", time.Now()),
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryMarkNotifiedMissingRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_records SET sms_sent = TRUE WHERE id = $1")).
		WithArgs("s1_2024-03-01").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkNotified(context.Background(), "s1_2024-03-01")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListDates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT date FROM attendance_records ORDER BY date DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"date"}).AddRow("2024-03-02").AddRow("2024-03-01"))

	dates, err := repo.ListDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-02", "2024-03-01"}, dates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByDateDecodesUnknownStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	now := time.Now()
	mock.ExpectQuery("WHERE date = \\$1 ORDER BY student_name ASC").
		WithArgs("2024-03-01").
		WillReturnRows(recordRows().AddRow("s1_2024-03-01", "s1", "Alice", "2024-03-01", "LATE", false, now))

	records, err := repo.ListByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceStatusNotMarked, records[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryHasAnyRecordForDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db, nil, nil)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("2024-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasAnyRecordForDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
