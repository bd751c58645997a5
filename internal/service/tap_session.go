package service

import (
	"time"

	"github.com/rollcall/attendance-api/internal/models"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
)

// TapKind names the transition a tap caused.
type TapKind string

const (
	// TapSelected moved a student from Idle to Pending.
	TapSelected TapKind = "selected"
	// TapRearmed replaced the pending status of the selected student.
	TapRearmed TapKind = "rearmed"
	// TapConfirmed was the second matching tap; the status was persisted.
	TapConfirmed TapKind = "confirmed"
)

// TapSession is the transient two-tap state of one client. A student is Idle
// unless it has an entry in pending. Only the selected student can confirm,
// and only with the status it is pending on.
type TapSession struct {
	selected string
	pending  map[string]models.AttendanceStatus

	storeError        string
	notificationError *appErrors.NotificationError
	message           string

	changed  chan struct{}
	lastUsed time.Time
}

func newTapSession() *TapSession {
	return &TapSession{
		pending: make(map[string]models.AttendanceStatus),
		changed: make(chan struct{}),
	}
}

// tap applies one status tap and reports the transition. TapConfirmed leaves
// the pending entry in place until finish is called.
func (s *TapSession) tap(studentID string, status models.AttendanceStatus) TapKind {
	current, pending := s.pending[studentID]
	if s.selected == studentID && pending && current == status {
		return TapConfirmed
	}
	if s.selected != "" && s.selected != studentID {
		delete(s.pending, s.selected)
	}
	s.selected = studentID
	s.pending[studentID] = status
	s.touch()
	if pending {
		return TapRearmed
	}
	return TapSelected
}

// finish returns studentID to Idle after a confirmation of status. A pending
// status re-armed while the confirmation ran is kept.
func (s *TapSession) finish(studentID string, status models.AttendanceStatus) {
	if current, ok := s.pending[studentID]; ok && current != status {
		s.touch()
		return
	}
	if s.selected == studentID {
		s.selected = ""
	}
	delete(s.pending, studentID)
	s.touch()
}

// clearSelection resets every student to Idle.
func (s *TapSession) clearSelection() {
	s.selected = ""
	s.pending = make(map[string]models.AttendanceStatus)
	s.touch()
}

func (s *TapSession) pendingFor(studentID string) (models.AttendanceStatus, bool) {
	status, ok := s.pending[studentID]
	return status, ok
}

// touch wakes every board watcher of the session.
func (s *TapSession) touch() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// view copies the session state for projection.
func (s *TapSession) view() sessionView {
	pending := make(map[string]models.AttendanceStatus, len(s.pending))
	for id, status := range s.pending {
		pending[id] = status
	}
	return sessionView{
		selected:          s.selected,
		pending:           pending,
		storeError:        s.storeError,
		notificationError: s.notificationError,
		message:           s.message,
	}
}

type sessionView struct {
	selected          string
	pending           map[string]models.AttendanceStatus
	storeError        string
	notificationError *appErrors.NotificationError
	message           string
}
