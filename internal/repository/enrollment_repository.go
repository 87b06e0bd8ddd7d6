package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/raihan-dev/school-core-api/internal/models"
)

const enrollmentColumns = `id, academic_year, student_id, class_id, class_name, status, deleted, enrolled_at, withdrawn_at, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments. Reads exclude
// soft-deleted rows; the deleted flag is only ever set, never cleared here.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActiveByStudentAndYear returns the single active enrollment for the
// student in the given academic year.
func (r *EnrollmentRepository) FindActiveByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND academic_year = $2 AND status = $3 AND deleted = FALSE
        LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, academicYear, models.EnrollmentStatusEnrolled); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByClassID returns the active roster resolved by class id.
func (r *EnrollmentRepository) ListActiveByClassID(ctx context.Context, classID, academicYear string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE class_id = $1 AND academic_year = $2 AND status = $3 AND deleted = FALSE
        ORDER BY created_at ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, academicYear, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list roster by class id: %w", err)
	}
	return enrollments, nil
}

// ListActiveByClassName returns the active roster matched on the denormalized
// class display name. Serves legacy rows that never stored a class id.
func (r *EnrollmentRepository) ListActiveByClassName(ctx context.Context, className, academicYear string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE class_name = $1 AND academic_year = $2 AND status = $3 AND deleted = FALSE
        ORDER BY created_at ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, className, academicYear, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list roster by class name: %w", err)
	}
	return enrollments, nil
}

// ExistsActive checks whether the student already has an active enrollment in
// the academic year, optionally excluding one row.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, academicYear, excludeID string) (bool, error) {
	query := `SELECT 1 FROM enrollments
        WHERE student_id = $1 AND academic_year = $2 AND status = $3 AND deleted = FALSE`
	args := []interface{}{studentID, academicYear, models.EnrollmentStatusEnrolled}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, academic_year, student_id, class_id, class_name, status, deleted, enrolled_at, withdrawn_at, created_at, updated_at)
        VALUES (:id, :academic_year, :student_id, :class_id, :class_name, :status, :deleted, :enrolled_at, :withdrawn_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// TransferClass moves an active enrollment to another class.
func (r *EnrollmentRepository) TransferClass(ctx context.Context, id, classID, className string) error {
	const query = `UPDATE enrollments
        SET class_id = $2, class_name = $3, status = $4, updated_at = $5
        WHERE id = $1 AND deleted = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id, classID, className, models.EnrollmentStatusEnrolled, time.Now().UTC()); err != nil {
		return fmt.Errorf("transfer enrollment: %w", err)
	}
	return nil
}

// Withdraw soft-deletes an enrollment. Rows are never hard-deleted.
func (r *EnrollmentRepository) Withdraw(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE enrollments
        SET status = $2, deleted = TRUE, withdrawn_at = $3, updated_at = $3
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusWithdrawn, at)
	if err != nil {
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check withdrawn rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
