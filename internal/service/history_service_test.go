package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/attendance-api/internal/models"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
)

func seedHistory(store *memoryStore, studentID, name string, statuses ...models.AttendanceStatus) {
	for i, status := range statuses {
		date := testDay.AddDate(0, 0, -i).Format(models.DateLayout)
		store.records[models.RecordKey(studentID, date)] = models.AttendanceRecord{
			ID:          models.RecordKey(studentID, date),
			StudentID:   studentID,
			StudentName: name,
			Date:        date,
			Status:      status,
			Timestamp:   testDay,
		}
	}
}

func repeat(status models.AttendanceStatus, n int) []models.AttendanceStatus {
	out := make([]models.AttendanceStatus, n)
	for i := range out {
		out[i] = status
	}
	return out
}

func TestHistoryStudentStats(t *testing.T) {
	store := newMemoryStore(models.Student{ID: alice, Name: "Alice", IsActive: false})
	statuses := append(repeat(models.AttendanceStatusPresent, 8), repeat(models.AttendanceStatusAbsent, 2)...)
	statuses = append(statuses, repeat(models.AttendanceStatusHoliday, 3)...)
	seedHistory(store, alice, "Alice", statuses...)
	svc := NewHistoryService(store, store, nil)

	history, err := svc.StudentHistory(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 13, history.Stats.Total)
	assert.InDelta(t, 80.0, history.Stats.Percentage, 0.0001)
	assert.Equal(t, "2024-01-01", history.Records[0].Date)
	assert.False(t, history.Student.IsActive)
}

func TestHistoryDayAndDates(t *testing.T) {
	store := newMemoryStore()
	seedHistory(store, "b", "Bob", models.AttendanceStatusAbsent, models.AttendanceStatusPresent)
	seedHistory(store, "a", "Alice", models.AttendanceStatusPresent)
	svc := NewHistoryService(store, store, nil)
	ctx := context.Background()

	dates, err := svc.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2023-12-31"}, dates)

	day, err := svc.Day(ctx, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, day.Records, 2)
	assert.Equal(t, "Alice", day.Records[0].StudentName)
	assert.Equal(t, 1, day.Summary.Present)
	assert.Equal(t, 1, day.Summary.Absent)

	_, err = svc.Day(ctx, "yesterday")
	var validation *appErrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestHistoryExportDay(t *testing.T) {
	store := newMemoryStore()
	seedHistory(store, "a", "Alice", models.AttendanceStatusAbsent)
	svc := NewHistoryService(store, store, nil)
	ctx := context.Background()

	file, err := svc.ExportDay(ctx, "2024-01-01", "csv")
	require.NoError(t, err)
	assert.Equal(t, "attendance-2024-01-01.csv", file.Filename)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("Alice,ABSENT,no,%s", testDay.Format("15:04")), lines[1])

	_, err = svc.ExportDay(ctx, "2024-01-01", "docx")
	assert.Equal(t, appErrors.ErrUnsupportedFormat.Code, appErrors.FromError(err).Code)
}

func TestHistoryWatchStudentHistory(t *testing.T) {
	store := newMemoryStore(activeStudent(alice, "Alice", "5551234567"))
	svc := NewHistoryService(store, store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := svc.WatchStudentHistory(ctx, alice)
	require.NoError(t, err)
	first := <-stream
	require.NoError(t, first.Err)
	assert.Empty(t, first.Value.Records)

	_, err = store.Upsert(ctx, &models.AttendanceRecord{StudentID: alice, StudentName: "Alice", Date: "2024-01-01", Status: models.AttendanceStatusPresent})
	require.NoError(t, err)

	select {
	case snap := <-stream:
		require.NoError(t, snap.Err)
		require.Len(t, snap.Value.Records, 1)
		assert.InDelta(t, 100.0, snap.Value.Stats.Percentage, 0.0001)
	case <-time.After(time.Second):
		t.Fatal("expected history update")
	}

	_, err = svc.WatchStudentHistory(ctx, "missing")
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
