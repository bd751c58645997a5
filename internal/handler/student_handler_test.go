package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	"github.com/rollcall/attendance-api/internal/service"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
)

type fakeRoster struct {
	students  []models.Student
	createErr error
	removed   []string
}

func (f *fakeRoster) ListActive(context.Context) ([]models.Student, error) { return f.students, nil }

func (f *fakeRoster) WatchActive(context.Context) <-chan repository.Snapshot[[]models.Student] {
	ch := make(chan repository.Snapshot[[]models.Student], 1)
	ch <- repository.Snapshot[[]models.Student]{Value: f.students}
	close(ch)
	return ch
}

func (f *fakeRoster) Get(_ context.Context, id string) (*models.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (f *fakeRoster) Create(_ context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Student{ID: "new", Name: req.Name, ParentPhone: req.ParentPhone, IsActive: true}, nil
}

func (f *fakeRoster) Update(_ context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id, Name: req.Name, ParentPhone: req.ParentPhone, IsActive: true}, nil
}

func (f *fakeRoster) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func studentRouter(roster *fakeRoster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewStudentHandler(roster)
	r.GET("/students", h.List)
	r.GET("/students/stream", h.Stream)
	r.POST("/students", h.Create)
	r.GET("/students/:id", h.Get)
	r.DELETE("/students/:id", h.Delete)
	return r
}

func TestStudentHandlerCreateValidationDetails(t *testing.T) {
	roster := &fakeRoster{createErr: &appErrors.ValidationError{Fields: []appErrors.FieldError{
		{Field: "name", Reason: "name is required"},
		{Field: "parent_phone", Reason: "phone must contain at least 10 digits"},
	}}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(`{"name":"","parent_phone":"1"}`))
	req.Header.Set("Content-Type", "application/json")

	studentRouter(roster).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env struct {
		Error struct {
			Code    string                 `json:"code"`
			Details []appErrors.FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Len(t, env.Error.Details, 2)
}

func TestStudentHandlerCreate(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/students", bytes.NewBufferString(`{"name":"Alice","parent_phone":"5551234567"}`))
	req.Header.Set("Content-Type", "application/json")

	studentRouter(&fakeRoster{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alice"`)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	studentRouter(&fakeRoster{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerDelete(t *testing.T) {
	roster := &fakeRoster{}
	rec := httptest.NewRecorder()
	studentRouter(roster).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/students/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"s1"}, roster.removed)
}

func TestStudentHandlerListAndStream(t *testing.T) {
	roster := &fakeRoster{students: []models.Student{{ID: "a", Name: "Alice", IsActive: true}}}
	router := studentRouter(roster)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, float64(1), env.Meta["total"])

	stream := newStreamRecorder()
	router.ServeHTTP(stream, httptest.NewRequest(http.MethodGet, "/students/stream", nil))
	assert.Contains(t, stream.Body.String(), "event:students")
	assert.Contains(t, stream.Body.String(), "Alice")
}
