package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	appErrors "github.com/rollcall/attendance-api/pkg/errors"
	"github.com/rollcall/attendance-api/pkg/notify"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	WatchActive(ctx context.Context) <-chan repository.Snapshot[[]models.Student]
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) (bool, error)
}

// CreateStudentRequest holds payload for adding a student.
type CreateStudentRequest struct {
	Name        string `json:"name" validate:"notblank"`
	ParentPhone string `json:"parent_phone" validate:"phone_digits"`
}

// UpdateStudentRequest holds payload for editing a student. Editing is stricter
// than adding.
type UpdateStudentRequest struct {
	Name        string `json:"name" validate:"notblank,min=2"`
	ParentPhone string `json:"parent_phone" validate:"phone_strict"`
}

var strictPhone = regexp.MustCompile(`^[+]?[0-9]{10,15}$`)

// RegisterRosterValidations adds the roster's custom tags to v.
func RegisterRosterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return len(notify.DigitsOnly(fl.Field().String())) >= 10
	})
	_ = v.RegisterValidation("phone_strict", func(fl validator.FieldLevel) bool {
		return strictPhone.MatchString(fl.Field().String())
	})
}

// StudentService manages the class roster.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the roster service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	RegisterRosterValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// ListActive returns active students ordered by name.
func (s *StudentService) ListActive(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.NewStoreError("getActiveStudents", err)
	}
	return students, nil
}

// WatchActive streams the active roster.
func (s *StudentService) WatchActive(ctx context.Context) <-chan repository.Snapshot[[]models.Student] {
	return s.repo.WatchActive(ctx)
}

// Get returns a student, including removed ones.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.NewStoreError("getById", err)
	}
	return student, nil
}

// Create validates and adds an active student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ParentPhone = strings.TrimSpace(req.ParentPhone)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	student := &models.Student{Name: req.Name, ParentPhone: req.ParentPhone, IsActive: true}
	if err := s.repo.Create(ctx, student); err != nil {
		s.logger.Error("add student failed", zap.Error(err))
		return nil, appErrors.NewStoreError("addStudent", err)
	}
	return student, nil
}

// Update changes the name and parent phone of a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ParentPhone = strings.TrimSpace(req.ParentPhone)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Name = req.Name
	student.ParentPhone = req.ParentPhone
	if err := s.repo.Update(ctx, student); err != nil {
		s.logger.Error("update student failed", zap.String("student_id", id), zap.Error(err))
		return nil, appErrors.NewStoreError("updateStudent", err)
	}
	return student, nil
}

// Remove deactivates a student. Attendance history is kept and removing twice
// is a no-op.
func (s *StudentService) Remove(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	changed, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		s.logger.Error("remove student failed", zap.String("student_id", id), zap.Error(err))
		return appErrors.NewStoreError("removeStudent", err)
	}
	if changed {
		s.logger.Info("student removed", zap.String("student_id", id))
	}
	return nil
}

func (s *StudentService) validate(req interface{}) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	out := &appErrors.ValidationError{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, rosterFieldError(fe))
	}
	return out
}

func rosterFieldError(fe validator.FieldError) appErrors.FieldError {
	switch fe.StructField() {
	case "Name":
		if fe.Tag() == "min" {
			return appErrors.FieldError{Field: "name", Reason: "name must be at least 2 characters"}
		}
		return appErrors.FieldError{Field: "name", Reason: "name is required"}
	case "ParentPhone":
		if fe.Tag() == "phone_strict" {
			return appErrors.FieldError{Field: "parent_phone", Reason: "phone must be 10 to 15 digits with an optional leading +"}
		}
		return appErrors.FieldError{Field: "parent_phone", Reason: "phone must contain at least 10 digits"}
	default:
		return appErrors.FieldError{Field: fe.Field(), Reason: fe.Tag()}
	}
}
