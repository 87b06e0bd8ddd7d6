package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/raihan-dev/school-core-api/internal/models"
)

// StudentRepository reads student records. The authorization resolver depends
// on FindByID returning the parent reference straight off the student row.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by its id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, name, name_en, parent_id, birth_date, active, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByParent returns the students owned by a parent.
func (r *StudentRepository) ListByParent(ctx context.Context, parentID string) ([]models.Student, error) {
	const query = `SELECT id, name, name_en, parent_id, birth_date, active, created_at, updated_at
        FROM students WHERE parent_id = $1 ORDER BY name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, parentID); err != nil {
		return nil, err
	}
	return students, nil
}
