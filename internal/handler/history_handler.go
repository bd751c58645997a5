package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rollcall/attendance-api/internal/dto"
	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	"github.com/rollcall/attendance-api/internal/service"
	"github.com/rollcall/attendance-api/pkg/response"
)

type historyService interface {
	Dates(ctx context.Context) ([]string, error)
	Day(ctx context.Context, date string) (*models.DailyAttendance, error)
	StudentHistory(ctx context.Context, studentID string) (*dto.StudentHistory, error)
	ExportDay(ctx context.Context, date, format string) (*service.ExportFile, error)
	WatchDates(ctx context.Context) <-chan repository.Snapshot[[]string]
	WatchDay(ctx context.Context, date string) (<-chan repository.Snapshot[*models.DailyAttendance], error)
	WatchStudentHistory(ctx context.Context, studentID string) (<-chan repository.Snapshot[*dto.StudentHistory], error)
}

// HistoryHandler exposes past attendance.
type HistoryHandler struct {
	history historyService
}

// NewHistoryHandler constructs HistoryHandler.
func NewHistoryHandler(history historyService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Dates godoc
// @Summary Dates with attendance, newest first
// @Tags History
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/dates [get]
func (h *HistoryHandler) Dates(c *gin.Context) {
	dates, err := h.history.Dates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates)
}

// StreamDates godoc
// @Summary Live list of dates with attendance
// @Tags History
// @Produce text/event-stream
// @Router /attendance/dates/stream [get]
func (h *HistoryHandler) StreamDates(c *gin.Context) {
	ctx := c.Request.Context()
	streamEvents(c, "dates", snapshotEvents(ctx, h.history.WatchDates(ctx)))
}

// Day godoc
// @Summary Attendance of one date
// @Tags History
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/dates/{date} [get]
func (h *HistoryHandler) Day(c *gin.Context) {
	day, err := h.history.Day(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day)
}

// StreamDay godoc
// @Summary Live attendance of one date
// @Tags History
// @Produce text/event-stream
// @Param date path string true "Date (YYYY-MM-DD)"
// @Router /attendance/dates/{date}/stream [get]
func (h *HistoryHandler) StreamDay(c *gin.Context) {
	ctx := c.Request.Context()
	snaps, err := h.history.WatchDay(ctx, c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamEvents(c, "day", snapshotEvents(ctx, snaps))
}

// Export godoc
// @Summary Download one date's attendance
// @Tags History
// @Produce text/csv
// @Produce application/pdf
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /attendance/dates/{date}/export [get]
func (h *HistoryHandler) Export(c *gin.Context) {
	file, err := h.history.ExportDay(c.Request.Context(), c.Param("date"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// StudentHistory godoc
// @Summary A student's attendance history and statistics
// @Tags History
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/history [get]
func (h *HistoryHandler) StudentHistory(c *gin.Context) {
	history, err := h.history.StudentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

// StreamStudentHistory godoc
// @Summary Live attendance history of one student
// @Tags History
// @Produce text/event-stream
// @Param id path string true "Student ID"
// @Router /students/{id}/history/stream [get]
func (h *HistoryHandler) StreamStudentHistory(c *gin.Context) {
	ctx := c.Request.Context()
	snaps, err := h.history.WatchStudentHistory(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamEvents(c, "history", snapshotEvents(ctx, snaps))
}
