package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/dto"
	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
	"github.com/rollcall/attendance-api/pkg/notify"
)

// DefaultSessionID is used when a client does not name its tap session.
const DefaultSessionID = "default"

type attendanceStore interface {
	FindByKey(ctx context.Context, key string) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	BatchCreateIfAbsent(ctx context.Context, records []models.AttendanceRecord) (int, error)
	MarkNotified(ctx context.Context, key string) error
	HasAnyRecordForDate(ctx context.Context, date string) (bool, error)
	ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	WatchByDate(ctx context.Context, date string) <-chan repository.Snapshot[[]models.AttendanceRecord]
}

type rosterStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	WatchActive(ctx context.Context) <-chan repository.Snapshot[[]models.Student]
}

// AttendanceConfig tunes the attendance engine.
type AttendanceConfig struct {
	Location *time.Location
	Now      func() time.Time
	// RolloverCheck is how often live boards look for a new calendar day.
	RolloverCheck time.Duration
	// SessionIdleTTL is how long an untouched tap session is kept.
	SessionIdleTTL time.Duration
}

// AttendanceService owns today's attendance: day initialization, the two-tap
// confirmation protocol, absence notification and the board projection.
type AttendanceService struct {
	records  attendanceStore
	students rosterStore
	gateway  notify.Gateway
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AttendanceConfig

	mu         sync.Mutex
	sessions   map[string]*TapSession
	created    chan struct{}
	confirming map[string]struct{}
}

// NewAttendanceService constructs the engine.
func NewAttendanceService(records attendanceStore, students rosterStore, gateway notify.Gateway, metrics *MetricsService, cfg AttendanceConfig, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RolloverCheck <= 0 {
		cfg.RolloverCheck = time.Minute
	}
	if cfg.SessionIdleTTL <= 0 {
		cfg.SessionIdleTTL = 12 * time.Hour
	}
	return &AttendanceService{
		records:    records,
		students:   students,
		gateway:    gateway,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		sessions:   make(map[string]*TapSession),
		created:    make(chan struct{}),
		confirming: make(map[string]struct{}),
	}
}

// Today returns the current calendar date in the configured location.
func (s *AttendanceService) Today() string {
	return models.FormatDate(s.cfg.Now().In(s.cfg.Location))
}

// EnsureDayInitialized creates a NOT_MARKED record for every active student
// lacking one on date and returns how many were created. Existing records are
// left untouched, so repeated and concurrent calls are safe.
func (s *AttendanceService) EnsureDayInitialized(ctx context.Context, students []models.Student, date string) (int, error) {
	if !models.ValidDate(date) {
		return 0, &appErrors.ValidationError{Fields: []appErrors.FieldError{{Field: "date", Reason: "date must use YYYY-MM-DD"}}}
	}
	now := s.cfg.Now().UTC()
	seen := make(map[string]struct{}, len(students))
	records := make([]models.AttendanceRecord, 0, len(students))
	for _, student := range students {
		if !student.IsActive {
			continue
		}
		if _, dup := seen[student.ID]; dup {
			continue
		}
		seen[student.ID] = struct{}{}
		records = append(records, models.NewDayRecord(student, date, now))
	}
	if len(records) == 0 {
		return 0, nil
	}

	created, err := s.records.BatchCreateIfAbsent(context.WithoutCancel(ctx), records)
	if err != nil {
		s.logger.Error("day initialization failed", zap.String("date", date), zap.Error(err))
		return 0, appErrors.NewStoreError("batchCreateIfAbsent", err)
	}
	s.metrics.RecordDayInitialized(created)
	s.logger.Info("day initialized", zap.String("date", date), zap.Int("students", len(records)), zap.Int("created", created))
	return created, nil
}

// InitializeDay loads the active roster and initializes date for it.
func (s *AttendanceService) InitializeDay(ctx context.Context, date string) (int, error) {
	if !models.ValidDate(date) {
		return 0, &appErrors.ValidationError{Fields: []appErrors.FieldError{{Field: "date", Reason: "date must use YYYY-MM-DD"}}}
	}
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return 0, appErrors.NewStoreError("getActiveStudents", err)
	}
	return s.EnsureDayInitialized(ctx, students, date)
}

// Tap handles one status button press for studentID in the given session. A
// first tap, or a tap with a different status, only arms the pending status.
// A second tap with the same status on the selected student confirms it.
func (s *AttendanceService) Tap(ctx context.Context, sessionID, studentID string, status models.AttendanceStatus) (*dto.TapResult, error) {
	studentID = strings.TrimSpace(studentID)
	var fields []appErrors.FieldError
	if studentID == "" {
		fields = append(fields, appErrors.FieldError{Field: "student_id", Reason: "student_id is required"})
	}
	if !status.Valid() || status == models.AttendanceStatusNotMarked {
		fields = append(fields, appErrors.FieldError{Field: "status", Reason: "status must be PRESENT, ABSENT or HOLIDAY"})
	}
	if len(fields) > 0 {
		return nil, &appErrors.ValidationError{Fields: fields}
	}

	s.mu.Lock()
	session := s.session(sessionID)
	kind := session.tap(studentID, status)
	session.lastUsed = s.cfg.Now()
	s.mu.Unlock()
	s.metrics.RecordTap(kind)

	if kind != TapConfirmed {
		pending := status
		return &dto.TapResult{Outcome: string(kind), StudentID: studentID, PendingStatus: &pending}, nil
	}

	if !s.beginConfirm(studentID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance confirmation already in progress")
	}
	defer s.endConfirm(studentID)

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil || !student.IsActive {
		s.withSession(sessionID, func(sess *TapSession) { sess.finish(studentID, status) })
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		storeErr := appErrors.NewStoreError("getById", err)
		s.withSession(sessionID, func(sess *TapSession) { sess.storeError = storeErr.Error() })
		return nil, storeErr
	}

	record, notified, err := s.confirm(ctx, student.ID, student.Name, status)
	s.withSession(sessionID, func(sess *TapSession) {
		sess.finish(studentID, status)
		var notification *appErrors.NotificationError
		var store *appErrors.StoreError
		switch {
		case errors.As(err, &notification):
			sess.notificationError = notification
		case errors.As(err, &store):
			sess.storeError = store.Error()
		case err == nil && notified:
			sess.message = "Absence notification sent to parent of " + student.Name
		}
	})
	if err != nil {
		return nil, err
	}
	return &dto.TapResult{Outcome: string(TapConfirmed), StudentID: studentID, Record: record, Notified: notified}, nil
}

// ConfirmStatus persists status for today's record of the student. Marking a
// student ABSENT first notifies the parent unless today's record already
// carries smsSent; a failed or refused notification aborts with a
// NotificationError and nothing is written.
func (s *AttendanceService) ConfirmStatus(ctx context.Context, studentID, studentName string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	record, _, err := s.confirm(ctx, studentID, studentName, status)
	return record, err
}

func (s *AttendanceService) confirm(ctx context.Context, studentID, studentName string, status models.AttendanceStatus) (*models.AttendanceRecord, bool, error) {
	date := s.Today()
	key := models.RecordKey(studentID, date)
	logger := s.logger.With(zap.String("record", key), zap.String("status", string(status)))

	sent := false
	if status == models.AttendanceStatusAbsent && s.needsNotification(ctx, key) {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			return nil, false, appErrors.NewStoreError("getById", err)
		}
		result := s.gateway.Send(ctx, student.ParentPhone, notify.AbsenceMessage(studentName))
		s.metrics.RecordNotification(result.Outcome)
		switch result.Outcome {
		case notify.OutcomeSent:
			sent = true
			logger.Info("absence notification sent", zap.String("ack_id", result.AckID))
		case notify.OutcomePermissionDenied:
			logger.Warn("absence notification not permitted", zap.String("reason", result.Reason))
			return nil, false, &appErrors.NotificationError{StudentName: studentName, Phone: student.ParentPhone, Reason: appErrors.ReasonPermissionDenied, Detail: result.Reason}
		default:
			logger.Warn("absence notification failed", zap.String("reason", result.Reason))
			return nil, false, &appErrors.NotificationError{StudentName: studentName, Phone: student.ParentPhone, Reason: appErrors.ReasonGatewayFailure, Detail: result.Reason}
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	stored, err := s.records.Upsert(writeCtx, &models.AttendanceRecord{
		StudentID:   studentID,
		StudentName: studentName,
		Date:        date,
		Status:      status,
		SMSSent:     sent,
		Timestamp:   s.cfg.Now().UTC(),
	})
	if err != nil {
		logger.Error("attendance write failed", zap.Bool("notified", sent), zap.Error(err))
		return nil, sent, appErrors.NewStoreError("upsertAttendance", err)
	}
	if sent && !stored.SMSSent {
		if err := s.records.MarkNotified(writeCtx, key); err != nil {
			logger.Error("mark notified failed", zap.Error(err))
			return nil, sent, appErrors.NewStoreError("markNotified", err)
		}
		stored.SMSSent = true
	}
	s.metrics.RecordConfirmation(status)
	return stored, sent, nil
}

// needsNotification reads today's record. A failed read counts as "needed" so
// a parent is never skipped silently.
func (s *AttendanceService) needsNotification(ctx context.Context, key string) bool {
	record, err := s.records.FindByKey(ctx, key)
	switch {
	case err == nil:
		return !record.SMSSent
	case errors.Is(err, sql.ErrNoRows):
		return true
	default:
		s.logger.Warn("notification pre-check failed, assuming notification needed", zap.String("record", key), zap.Error(err))
		return true
	}
}

func (s *AttendanceService) beginConfirm(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.confirming[studentID]; busy {
		return false
	}
	s.confirming[studentID] = struct{}{}
	return true
}

func (s *AttendanceService) endConfirm(studentID string) {
	s.mu.Lock()
	delete(s.confirming, studentID)
	s.mu.Unlock()
}

// ClearSelection returns every student of the session to Idle without writing.
func (s *AttendanceService) ClearSelection(sessionID string) {
	s.withSession(sessionID, func(sess *TapSession) { sess.clearSelection() })
}

// ClearError dismisses the session's store error banner.
func (s *AttendanceService) ClearError(sessionID string) {
	s.withSession(sessionID, func(sess *TapSession) { sess.storeError = "" })
}

// ClearNotificationError acknowledges the session's notification error.
func (s *AttendanceService) ClearNotificationError(sessionID string) {
	s.withSession(sessionID, func(sess *TapSession) { sess.notificationError = nil })
}

// ClearMessage dismisses the session's success message.
func (s *AttendanceService) ClearMessage(sessionID string) {
	s.withSession(sessionID, func(sess *TapSession) { sess.message = "" })
}

// DiscardSession drops the session's transient state. Nothing is persisted.
func (s *AttendanceService) DiscardSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := normalizeSession(sessionID)
	if sess, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		sess.touch()
	}
}

// withSession applies fn to an existing session. Unknown sessions are left
// alone; only a tap creates one.
func (s *AttendanceService) withSession(sessionID string, fn func(*TapSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[normalizeSession(sessionID)]
	if !ok {
		return
	}
	fn(sess)
	sess.lastUsed = s.cfg.Now()
	sess.touch()
}

// session returns the session for id, creating it and expiring idle ones.
// Callers hold s.mu.
func (s *AttendanceService) session(id string) *TapSession {
	id = normalizeSession(id)
	sess, ok := s.sessions[id]
	if ok {
		return sess
	}
	s.expireIdle()
	sess = newTapSession()
	sess.lastUsed = s.cfg.Now()
	s.sessions[id] = sess
	close(s.created)
	s.created = make(chan struct{})
	return sess
}

// expireIdle drops sessions untouched for longer than SessionIdleTTL.
// Callers hold s.mu.
func (s *AttendanceService) expireIdle() {
	cutoff := s.cfg.Now().Add(-s.cfg.SessionIdleTTL)
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			sess.touch()
		}
	}
}

// sessionState returns the session's view and a channel closed on its next
// change. For an unknown session it returns an empty view and a channel closed
// when any session is created.
func (s *AttendanceService) sessionState(id string) (sessionView, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[normalizeSession(id)]
	if !ok {
		return sessionView{}, s.created
	}
	return sess.view(), sess.changed
}

func normalizeSession(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultSessionID
	}
	return id
}
