package dto

import (
	"time"

	"github.com/rollcall/attendance-api/internal/models"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
)

// BoardItem is one roster row on today's attendance board.
type BoardItem struct {
	StudentID     string                   `json:"student_id"`
	Name          string                   `json:"name"`
	ParentPhone   string                   `json:"parent_phone"`
	Status        models.AttendanceStatus  `json:"status"`
	SMSSent       bool                     `json:"sms_sent"`
	MarkedAt      *time.Time               `json:"marked_at,omitempty"`
	Selected      bool                     `json:"selected"`
	PendingStatus *models.AttendanceStatus `json:"pending_status,omitempty"`
}

// Board is the attendance screen state for one tap session.
type Board struct {
	Date              string                       `json:"date"`
	Students          []BoardItem                  `json:"students"`
	Summary           models.DailySummary          `json:"summary"`
	Error             string                       `json:"error,omitempty"`
	NotificationError *appErrors.NotificationError `json:"notification_error,omitempty"`
	Message           string                       `json:"message,omitempty"`
}

// TapRequest is one tap on a status button.
type TapRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

// TapResult reports what a tap did.
type TapResult struct {
	Outcome       string                   `json:"outcome"`
	StudentID     string                   `json:"student_id"`
	PendingStatus *models.AttendanceStatus `json:"pending_status,omitempty"`
	Record        *models.AttendanceRecord `json:"record,omitempty"`
	Notified      bool                     `json:"notified"`
}

// DayInitResult reports a day initialization.
type DayInitResult struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
}
