package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/raihan-dev/school-core-api/internal/models"
)

// ClassRepository reads class records.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by its id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, academic_year, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByNameAndYear returns the class with a display name within a year.
// Legacy rows are reached through this path only.
func (r *ClassRepository) FindByNameAndYear(ctx context.Context, name, academicYear string) (*models.Class, error) {
	const query = `SELECT id, name, academic_year, created_at, updated_at
        FROM classes WHERE name = $1 AND academic_year = $2 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, name, academicYear); err != nil {
		return nil, err
	}
	return &class, nil
}
