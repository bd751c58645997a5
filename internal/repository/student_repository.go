package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/internal/models"
)

const studentColumns = `id, name, parent_phone, is_active, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db     *sqlx.DB
	feed   ChangeFeed
	logger *zap.Logger
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB, feed ChangeFeed, logger *zap.Logger) *StudentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentRepository{db: db, feed: feed, logger: logger}
}

// ListActive returns active students ordered by name.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE is_active = TRUE ORDER BY name ASC`
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// WatchActive streams the active roster, re-read after every student change.
func (r *StudentRepository) WatchActive(ctx context.Context) <-chan Snapshot[[]models.Student] {
	return Watch(ctx, r.feed, TopicStudents, r.ListActive)
}

// FindByID fetches a student, active or not.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, parent_phone, is_active, created_at, updated_at)
        VALUES (:id, :name, :parent_phone, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	r.announce(ctx)
	return nil
}

// Update changes the editable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, parent_phone = :parent_phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	r.announce(ctx)
	return nil
}

// Deactivate marks a student as inactive. It reports whether the row changed.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE students SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate student: %w", err)
	}
	if affected > 0 {
		r.announce(ctx)
	}
	return affected > 0, nil
}

func (r *StudentRepository) announce(ctx context.Context) {
	if err := publish(ctx, r.feed, TopicStudents); err != nil {
		r.logger.Warn("publish student change failed", zap.Error(err))
	}
}
