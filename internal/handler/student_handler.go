package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	"github.com/rollcall/attendance-api/internal/service"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
	"github.com/rollcall/attendance-api/pkg/response"
)

type rosterService interface {
	ListActive(ctx context.Context) ([]models.Student, error)
	WatchActive(ctx context.Context) <-chan repository.Snapshot[[]models.Student]
	Get(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error)
	Update(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error)
	Remove(ctx context.Context, id string) error
}

// StudentHandler exposes roster endpoints.
type StudentHandler struct {
	students rosterService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students rosterService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List active students
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.students.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, map[string]interface{}{"total": len(students)})
}

// Stream godoc
// @Summary Live active roster
// @Tags Students
// @Produce text/event-stream
// @Router /students/stream [get]
func (h *StudentHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	streamEvents(c, "students", snapshotEvents(ctx, h.students.WatchActive(ctx)))
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Create godoc
// @Summary Add student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Delete godoc
// @Summary Remove student
// @Description Deactivates the student; attendance history is kept.
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type snapshotEvent[T any] struct {
	Data  T                `json:"data,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
}

// snapshotEvents converts live-query snapshots into envelope-shaped events.
func snapshotEvents[T any](ctx context.Context, in <-chan repository.Snapshot[T]) <-chan snapshotEvent[T] {
	out := make(chan snapshotEvent[T])
	go func() {
		defer close(out)
		for snap := range in {
			ev := snapshotEvent[T]{Data: snap.Value}
			if snap.Err != nil {
				ev = snapshotEvent[T]{Error: appErrors.FromError(appErrors.NewStoreError("watch", snap.Err))}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
