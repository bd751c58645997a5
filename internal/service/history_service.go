package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/dto"
	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
	"github.com/rollcall/attendance-api/pkg/export"
)

type historyStore interface {
	ListDates(ctx context.Context) ([]string, error)
	ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
	WatchDates(ctx context.Context) <-chan repository.Snapshot[[]string]
	WatchByDate(ctx context.Context, date string) <-chan repository.Snapshot[[]models.AttendanceRecord]
	WatchStudentHistory(ctx context.Context, studentID string) <-chan repository.Snapshot[[]models.AttendanceRecord]
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ExportFile is a rendered attendance download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// HistoryService answers questions about past attendance.
type HistoryService struct {
	records  historyStore
	students studentLookup
	logger   *zap.Logger
}

// NewHistoryService constructs the history service.
func NewHistoryService(records historyStore, students studentLookup, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{records: records, students: students, logger: logger}
}

// Dates lists every date holding attendance, newest first.
func (s *HistoryService) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.records.ListDates(ctx)
	if err != nil {
		return nil, appErrors.NewStoreError("getAttendanceDates", err)
	}
	return dates, nil
}

// WatchDates streams the attendance dates.
func (s *HistoryService) WatchDates(ctx context.Context) <-chan repository.Snapshot[[]string] {
	return s.records.WatchDates(ctx)
}

// Day returns a date's records ordered by student name with status counts.
func (s *HistoryService) Day(ctx context.Context, date string) (*models.DailyAttendance, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	records, err := s.records.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.NewStoreError("getAttendanceByDate", err)
	}
	return dailyAttendance(date, records), nil
}

// WatchDay streams a date's attendance.
func (s *HistoryService) WatchDay(ctx context.Context, date string) (<-chan repository.Snapshot[*models.DailyAttendance], error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	return mapSnapshots(ctx, s.records.WatchByDate(ctx, date), func(records []models.AttendanceRecord) *models.DailyAttendance {
		return dailyAttendance(date, records)
	}), nil
}

// StudentHistory returns a student's records newest first with statistics.
// Removed students keep their history.
func (s *HistoryService) StudentHistory(ctx context.Context, studentID string) (*dto.StudentHistory, error) {
	student, err := s.lookup(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.NewStoreError("getStudentAttendanceHistory", err)
	}
	return studentHistory(*student, records), nil
}

// WatchStudentHistory streams a student's history.
func (s *HistoryService) WatchStudentHistory(ctx context.Context, studentID string) (<-chan repository.Snapshot[*dto.StudentHistory], error) {
	student, err := s.lookup(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return mapSnapshots(ctx, s.records.WatchStudentHistory(ctx, studentID), func(records []models.AttendanceRecord) *dto.StudentHistory {
		return studentHistory(*student, records)
	}), nil
}

// ExportDay renders a date's attendance as CSV or PDF.
func (s *HistoryService) ExportDay(ctx context.Context, date, format string) (*ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, err.Error())
	}
	day, err := s.Day(ctx, date)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   "Attendance " + date,
		Headers: []string{"Student", "Status", "Parent notified", "Marked at"},
		Notes: []string{
			fmt.Sprintf("Present: %d", day.Summary.Present),
			fmt.Sprintf("Absent: %d", day.Summary.Absent),
			fmt.Sprintf("Holiday: %d", day.Summary.Holiday),
			fmt.Sprintf("Not marked: %d", day.Summary.NotMarked),
		},
	}
	for _, r := range day.Records {
		notified := "no"
		if r.SMSSent {
			notified = "yes"
		}
		marked := ""
		if r.Status != models.AttendanceStatusNotMarked {
			marked = r.Timestamp.Format("15:04")
		}
		table.Rows = append(table.Rows, []string{r.StudentName, string(r.Status), notified, marked})
	}

	body, err := export.RendererFor(f).Render(table)
	if err != nil {
		s.logger.Error("render attendance export failed", zap.String("date", date), zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance-%s.%s", date, f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func (s *HistoryService) lookup(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.NewStoreError("getById", err)
	}
	return student, nil
}

func checkDate(date string) error {
	if models.ValidDate(date) {
		return nil
	}
	return &appErrors.ValidationError{Fields: []appErrors.FieldError{{Field: "date", Reason: "date must use YYYY-MM-DD"}}}
}

func dailyAttendance(date string, records []models.AttendanceRecord) *models.DailyAttendance {
	return &models.DailyAttendance{Date: date, Records: records, Summary: models.SummarizeDay(records)}
}

func studentHistory(student models.Student, records []models.AttendanceRecord) *dto.StudentHistory {
	return &dto.StudentHistory{Student: student, Records: records, Stats: models.ComputeStats(records)}
}

// mapSnapshots projects every snapshot of in through fn.
func mapSnapshots[In, Out any](ctx context.Context, in <-chan repository.Snapshot[In], fn func(In) Out) <-chan repository.Snapshot[Out] {
	out := make(chan repository.Snapshot[Out], 1)
	go func() {
		defer close(out)
		for snap := range in {
			next := repository.Snapshot[Out]{Err: snap.Err}
			if snap.Err == nil {
				next.Value = fn(snap.Value)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
