package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihan-dev/school-core-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRows(t *testing.T, entry models.AttendanceEntry) *sqlmock.Rows {
	raw, err := json.Marshal(entry.Records)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "academic_year", "class_id", "class_name", "date", "records", "total_students", "present_count", "absent_count", "late_count", "created_by", "updated_by", "created_at", "updated_at"}).
		AddRow(entry.ID, entry.AcademicYear, entry.ClassID, entry.ClassName, entry.Date, raw,
			entry.TotalStudents, entry.PresentCount, entry.AbsentCount, entry.LateCount,
			entry.CreatedBy, entry.UpdatedBy, entry.CreatedAt, entry.UpdatedAt)
}

func TestAttendanceRepositoryUpsertDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	entry := &models.AttendanceEntry{
		AcademicYear: "2025-2026",
		ClassID:      "class-a",
		ClassName:    "7A",
		Date:         date,
		Records: models.AttendanceRecordList{
			{StudentID: "s1", Status: models.AttendancePresent},
			{StudentID: "s2", Status: models.AttendanceLate},
		},
		CreatedBy: "teacher-1",
		UpdatedBy: "teacher-1",
	}

	stored := *entry
	stored.ID = "entry-1"
	stored.RecomputeCounts()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	mock.ExpectQuery("INSERT INTO attendance_entries").
		WithArgs(sqlmock.AnyArg(), "2025-2026", "class-a", "7A", date,
			sqlmock.AnyArg(), 2, 1, 0, 1, "teacher-1", "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(attendanceRows(t, stored))

	result, err := repo.UpsertDay(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalStudents)
	assert.Equal(t, 1, result.PresentCount)
	assert.Equal(t, 1, result.LateCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryGetDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	stored := models.AttendanceEntry{
		ID: "entry-1", AcademicYear: "2025-2026", ClassID: "class-a", ClassName: "7A", Date: date,
		Records:       models.AttendanceRecordList{{StudentID: "s1", Status: models.AttendanceAbsent}},
		TotalStudents: 1, AbsentCount: 1,
	}

	mock.ExpectQuery("SELECT (.+) FROM attendance_entries").
		WithArgs("2025-2026", "class-a", date).
		WillReturnRows(attendanceRows(t, stored))

	entry, err := repo.GetDay(context.Background(), "class-a", "2025-2026", date)
	require.NoError(t, err)
	require.Len(t, entry.Records, 1)
	assert.Equal(t, models.AttendanceAbsent, entry.Records[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListForStudentUsesContainment(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	stored := models.AttendanceEntry{
		ID: "entry-1", AcademicYear: "2025-2026", ClassID: "class-a",
		Date:    time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		Records: models.AttendanceRecordList{{StudentID: "s1", Status: models.AttendancePresent}},
	}

	mock.ExpectQuery("SELECT (.+) FROM attendance_entries").
		WithArgs(`[{"student_id": "s1"}]`, "2025-2026").
		WillReturnRows(attendanceRows(t, stored))

	entries, err := repo.ListForStudent(context.Background(), "s1", "2025-2026", nil, nil, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM attendance_entries").
		WithArgs("2025-2026", "class-a", date).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteDay(context.Background(), "class-a", "2025-2026", date)
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec("DELETE FROM attendance_entries").
		WithArgs("2025-2026", "class-a", date).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteDay(context.Background(), "class-a", "2025-2026", date)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
