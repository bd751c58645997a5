package service

import (
	"context"
	"sort"
	"time"

	"github.com/rollcall/attendance-api/internal/dto"
	"github.com/rollcall/attendance-api/internal/models"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
)

// buildBoard joins the roster with a day's records and a session's pending
// state. Students are deduplicated by id and sorted by name; students without
// a record show NOT_MARKED.
func buildBoard(date string, students []models.Student, records []models.AttendanceRecord, view sessionView) dto.Board {
	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	seen := make(map[string]struct{}, len(students))
	items := make([]dto.BoardItem, 0, len(students))
	dayRecords := make([]models.AttendanceRecord, 0, len(students))
	for _, st := range students {
		if !st.IsActive {
			continue
		}
		if _, dup := seen[st.ID]; dup {
			continue
		}
		seen[st.ID] = struct{}{}

		item := dto.BoardItem{
			StudentID:   st.ID,
			Name:        st.Name,
			ParentPhone: st.ParentPhone,
			Status:      models.AttendanceStatusNotMarked,
			Selected:    view.selected == st.ID,
		}
		if rec, ok := byStudent[st.ID]; ok {
			item.Status = rec.Status
			item.SMSSent = rec.SMSSent
			if rec.Status != models.AttendanceStatusNotMarked {
				ts := rec.Timestamp
				item.MarkedAt = &ts
			}
		}
		if pending, ok := view.pending[st.ID]; ok {
			p := pending
			item.PendingStatus = &p
		}
		items = append(items, item)
		dayRecords = append(dayRecords, models.AttendanceRecord{StudentID: st.ID, Status: item.Status})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].StudentID < items[j].StudentID
		}
		return items[i].Name < items[j].Name
	})

	return dto.Board{
		Date:              date,
		Students:          items,
		Summary:           models.SummarizeDay(dayRecords),
		Error:             view.storeError,
		NotificationError: view.notificationError,
		Message:           view.message,
	}
}

// Board returns the current attendance board for a session.
func (s *AttendanceService) Board(ctx context.Context, sessionID string) (*dto.Board, error) {
	date := s.Today()
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.NewStoreError("getActiveStudents", err)
	}
	records, err := s.records.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.NewStoreError("getTodayAttendance", err)
	}
	view, _ := s.sessionState(sessionID)
	board := buildBoard(date, students, records, view)
	return &board, nil
}

// WatchBoard emits the session's board whenever the roster, today's records
// or the session changes, and follows the calendar into a new day. The first
// board is emitted once both the roster and the day's records are loaded. A
// failed load keeps the last good data and reports the failure on the board.
func (s *AttendanceService) WatchBoard(ctx context.Context, sessionID string) <-chan dto.Board {
	out := make(chan dto.Board, 1)
	go func() {
		defer close(out)

		roster := s.students.WatchActive(ctx)
		date := s.Today()
		dayCtx, cancelDay := context.WithCancel(ctx)
		day := s.records.WatchByDate(dayCtx, date)
		defer func() { cancelDay() }()

		ticker := time.NewTicker(s.cfg.RolloverCheck)
		defer ticker.Stop()

		var (
			students             []models.Student
			records              []models.AttendanceRecord
			haveRoster, haveDay  bool
			rosterErr, recordErr error
		)
		_, changed := s.sessionState(sessionID)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-roster:
				if !ok {
					roster = nil
					continue
				}
				rosterErr = snap.Err
				if snap.Err == nil {
					students, haveRoster = snap.Value, true
				}
			case snap, ok := <-day:
				if !ok {
					day = nil
					continue
				}
				recordErr = snap.Err
				if snap.Err == nil {
					records, haveDay = snap.Value, true
				}
			case <-changed:
			case <-ticker.C:
				today := s.Today()
				if today == date {
					continue
				}
				cancelDay()
				date = today
				dayCtx, cancelDay = context.WithCancel(ctx)
				day = s.records.WatchByDate(dayCtx, date)
				records, haveDay, recordErr = nil, false, nil
				continue
			}

			var view sessionView
			view, changed = s.sessionState(sessionID)
			if view.storeError == "" {
				switch {
				case rosterErr != nil:
					view.storeError = appErrors.NewStoreError("getActiveStudents", rosterErr).Error()
				case recordErr != nil:
					view.storeError = appErrors.NewStoreError("getTodayAttendance", recordErr).Error()
				}
			}
			loadFailed := rosterErr != nil || recordErr != nil
			if (!haveRoster || !haveDay) && !loadFailed {
				continue
			}
			board := buildBoard(date, students, records, view)
			select {
			case out <- board:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
