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

// AssignmentRepository persists teacher-class assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByTeacherAndYear returns the teacher's active assignments for a year.
func (r *AssignmentRepository) ListByTeacherAndYear(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error) {
	const query = `
SELECT ca.id, ca.teacher_id, ca.class_id, c.name AS class_name, ca.academic_year, ca.subjects, ca.active, ca.created_at, ca.updated_at
FROM class_assignments ca
JOIN classes c ON c.id = ca.class_id
WHERE ca.teacher_id = $1 AND ca.academic_year = $2 AND ca.active = TRUE
ORDER BY c.name ASC`
	var assignments []models.ClassAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID, academicYear); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// Exists checks whether the teacher is already assigned to the class for the
// academic year.
func (r *AssignmentRepository) Exists(ctx context.Context, teacherID, classID, academicYear string) (bool, error) {
	const query = `SELECT 1 FROM class_assignments
        WHERE teacher_id = $1 AND class_id = $2 AND academic_year = $3 AND active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, classID, academicYear); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class assignment: %w", err)
	}
	return true, nil
}

// Create inserts a new assignment. The class's own academic year must match
// the assignment's; mismatches are rejected before the insert.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.ClassAssignment) error {
	var classYear string
	if err := r.db.GetContext(ctx, &classYear, `SELECT academic_year FROM classes WHERE id = $1`, assignment.ClassID); err != nil {
		return fmt.Errorf("load class for assignment: %w", err)
	}
	if classYear != assignment.AcademicYear {
		return fmt.Errorf("assignment year %s does not match class year %s", assignment.AcademicYear, classYear)
	}

	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.Active = true
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO class_assignments (id, teacher_id, class_id, academic_year, subjects, active, created_at, updated_at)
        VALUES (:id, :teacher_id, :class_id, :academic_year, :subjects, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create class assignment: %w", err)
	}
	return nil
}

// Deactivate retires an assignment without removing the row.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE class_assignments SET active = FALSE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate class assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivated rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
