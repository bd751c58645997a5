package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rollcall/attendance-api/internal/dto"
	"github.com/rollcall/attendance-api/internal/models"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
	"github.com/rollcall/attendance-api/pkg/response"
)

type attendanceEngine interface {
	Today() string
	Board(ctx context.Context, sessionID string) (*dto.Board, error)
	WatchBoard(ctx context.Context, sessionID string) <-chan dto.Board
	Tap(ctx context.Context, sessionID, studentID string, status models.AttendanceStatus) (*dto.TapResult, error)
	InitializeDay(ctx context.Context, date string) (int, error)
	ClearSelection(sessionID string)
	ClearError(sessionID string)
	ClearNotificationError(sessionID string)
	ClearMessage(sessionID string)
	DiscardSession(sessionID string)
}

// AttendanceHandler exposes today's attendance board and the tap protocol.
// Every endpoint acts on the session named by the X-Session-ID header.
type AttendanceHandler struct {
	engine attendanceEngine
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(engine attendanceEngine) *AttendanceHandler {
	return &AttendanceHandler{engine: engine}
}

// Today godoc
// @Summary Today's attendance board
// @Tags Attendance
// @Produce json
// @Param X-Session-ID header string false "Tap session"
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	board, err := h.engine.Board(c.Request.Context(), sessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board)
}

// Stream godoc
// @Summary Live attendance board
// @Description Server-sent "board" events, one per change of the roster, today's records or the session.
// @Tags Attendance
// @Produce text/event-stream
// @Param X-Session-ID header string false "Tap session"
// @Router /attendance/today/stream [get]
func (h *AttendanceHandler) Stream(c *gin.Context) {
	streamEvents(c, "board", h.engine.WatchBoard(c.Request.Context(), sessionID(c)))
}

// Tap godoc
// @Summary Tap a status button
// @Description The first tap arms a pending status; a second tap with the same status confirms and persists it.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param X-Session-ID header string false "Tap session"
// @Param payload body dto.TapRequest true "Tap"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /attendance/taps [post]
func (h *AttendanceHandler) Tap(c *gin.Context) {
	var req dto.TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	result, err := h.engine.Tap(c.Request.Context(), sessionID(c), req.StudentID, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// InitializeDay godoc
// @Summary Open a day for every active student
// @Tags Attendance
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD) or today"
// @Success 200 {object} response.Envelope
// @Router /attendance/days/{date}/initialize [post]
func (h *AttendanceHandler) InitializeDay(c *gin.Context) {
	date := c.Param("date")
	if date == "today" {
		date = h.engine.Today()
	}
	created, err := h.engine.InitializeDay(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DayInitResult{Date: date, Created: created})
}

// ClearSelection godoc
// @Summary Cancel the pending tap
// @Tags Attendance
// @Param X-Session-ID header string false "Tap session"
// @Success 204
// @Router /attendance/selection [delete]
func (h *AttendanceHandler) ClearSelection(c *gin.Context) {
	h.engine.ClearSelection(sessionID(c))
	response.NoContent(c)
}

// ClearError godoc
// @Summary Dismiss the store error banner
// @Tags Attendance
// @Success 204
// @Router /attendance/errors [delete]
func (h *AttendanceHandler) ClearError(c *gin.Context) {
	h.engine.ClearError(sessionID(c))
	response.NoContent(c)
}

// ClearNotificationError godoc
// @Summary Acknowledge a failed absence notification
// @Tags Attendance
// @Success 204
// @Router /attendance/notification-error [delete]
func (h *AttendanceHandler) ClearNotificationError(c *gin.Context) {
	h.engine.ClearNotificationError(sessionID(c))
	response.NoContent(c)
}

// ClearMessage godoc
// @Summary Dismiss the success message
// @Tags Attendance
// @Success 204
// @Router /attendance/message [delete]
func (h *AttendanceHandler) ClearMessage(c *gin.Context) {
	h.engine.ClearMessage(sessionID(c))
	response.NoContent(c)
}

// DiscardSession godoc
// @Summary Drop the session's transient tap state
// @Tags Attendance
// @Success 204
// @Router /attendance/session [delete]
func (h *AttendanceHandler) DiscardSession(c *gin.Context) {
	h.engine.DiscardSession(sessionID(c))
	response.NoContent(c)
}
