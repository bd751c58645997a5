package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rollcall/attendance-api/internal/models"
)

func TestTapSessionTransitions(t *testing.T) {
	s := newTapSession()

	assert.Equal(t, TapSelected, s.tap("a", models.AttendanceStatusAbsent))
	assert.Equal(t, TapRearmed, s.tap("a", models.AttendanceStatusPresent))
	assert.Equal(t, TapConfirmed, s.tap("a", models.AttendanceStatusPresent))

	pending, ok := s.pendingFor("a")
	assert.True(t, ok, "confirm keeps the entry until finish")
	assert.Equal(t, models.AttendanceStatusPresent, pending)

	s.finish("a", models.AttendanceStatusPresent)
	_, ok = s.pendingFor("a")
	assert.False(t, ok)
	assert.Empty(t, s.view().selected)
}

func TestTapSessionSelectionChangeResetsPrevious(t *testing.T) {
	s := newTapSession()
	s.tap("a", models.AttendanceStatusAbsent)
	s.tap("b", models.AttendanceStatusAbsent)

	_, ok := s.pendingFor("a")
	assert.False(t, ok)
	assert.Equal(t, "b", s.view().selected)
	assert.Equal(t, TapSelected, s.tap("a", models.AttendanceStatusAbsent))
}

func TestTapSessionTouchWakesWatchers(t *testing.T) {
	s := newTapSession()
	changed := s.changed
	s.clearSelection()

	select {
	case <-changed:
	default:
		t.Fatal("expected change signal")
	}
}

func TestTapSessionFinishKeepsRearmedStatus(t *testing.T) {
	s := newTapSession()
	assert.Equal(t, TapSelected, s.tap("a", models.AttendanceStatusAbsent))
	assert.Equal(t, TapConfirmed, s.tap("a", models.AttendanceStatusAbsent))
	assert.Equal(t, TapRearmed, s.tap("a", models.AttendanceStatusPresent))

	s.finish("a", models.AttendanceStatusAbsent)
	pending, ok := s.pendingFor("a")
	assert.True(t, ok)
	assert.Equal(t, models.AttendanceStatusPresent, pending)
	assert.Equal(t, "a", s.view().selected)
}
