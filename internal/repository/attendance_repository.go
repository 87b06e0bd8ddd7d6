package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/raihan-dev/school-core-api/internal/models"
)

const attendanceColumns = `id, academic_year, class_id, class_name, date, records, total_students, present_count, absent_count, late_count, created_by, updated_by, created_at, updated_at`

// AttendanceRepository persists per-day attendance entries. One row exists
// per (academic year, class, date); a write replaces the whole record set.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertDay atomically replaces the day's entry. The unique key on
// (academic_year, class_id, date) plus the single-statement upsert give
// readers either the old roster or the new one, never a mix. Last write wins.
func (r *AttendanceRepository) UpsertDay(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error) {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.RecomputeCounts()

	query := fmt.Sprintf(`INSERT INTO attendance_entries (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (academic_year, class_id, date)
DO UPDATE SET records = EXCLUDED.records,
    class_name = EXCLUDED.class_name,
    total_students = EXCLUDED.total_students,
    present_count = EXCLUDED.present_count,
    absent_count = EXCLUDED.absent_count,
    late_count = EXCLUDED.late_count,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns, attendanceColumns)

	var stored models.AttendanceEntry
	if err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.AcademicYear, entry.ClassID, entry.ClassName, entry.Date,
		entry.Records, entry.TotalStudents, entry.PresentCount, entry.AbsentCount, entry.LateCount,
		entry.CreatedBy, entry.UpdatedBy, entry.CreatedAt, entry.UpdatedAt,
	).StructScan(&stored); err != nil {
		return nil, fmt.Errorf("upsert attendance day: %w", err)
	}
	return &stored, nil
}

// GetDay returns the entry for the exact (year, class, date) key.
func (r *AttendanceRepository) GetDay(ctx context.Context, classID, academicYear string, date time.Time) (*models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries
        WHERE academic_year = $1 AND class_id = $2 AND date = $3`, attendanceColumns)
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, query, academicYear, classID, date); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetRange returns entries for the class between two dates, newest first.
func (r *AttendanceRepository) GetRange(ctx context.Context, classID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries
        WHERE academic_year = $1 AND class_id = $2`, attendanceColumns)
	args := []interface{}{academicYear, classID}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY date DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return entries, nil
}

// ListForStudent returns entries whose record set mentions the student,
// newest first. Days where the class entry omits the student are naturally
// excluded by the JSONB containment match.
func (r *AttendanceRepository) ListForStudent(ctx context.Context, studentID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries
        WHERE records @> $1`, attendanceColumns)
	args := []interface{}{fmt.Sprintf(`[{"student_id": %q}]`, studentID)}
	if academicYear != "" {
		query += fmt.Sprintf(" AND academic_year = $%d", len(args)+1)
		args = append(args, academicYear)
	}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY date DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return entries, nil
}

// DeleteDay removes the day entry. Only the gateway's admin path reaches this.
func (r *AttendanceRepository) DeleteDay(ctx context.Context, classID, academicYear string, date time.Time) (bool, error) {
	const query = `DELETE FROM attendance_entries WHERE academic_year = $1 AND class_id = $2 AND date = $3`
	result, err := r.db.ExecContext(ctx, query, academicYear, classID, date)
	if err != nil {
		return false, fmt.Errorf("delete attendance day: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deleted attendance rows: %w", err)
	}
	return affected > 0, nil
}
