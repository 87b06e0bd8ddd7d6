package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted *models.AttendanceEntry
	days     map[string]*models.AttendanceEntry
	forRange []models.AttendanceEntry
	student  []models.AttendanceEntry
	deleted  bool
}

func dayKey(classID, year string, date time.Time) string {
	return classID + "|" + year + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) UpsertDay(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error) {
	entry.RecomputeCounts()
	m.upserted = entry
	return entry, nil
}

func (m *mockAttendanceRepo) GetDay(ctx context.Context, classID, academicYear string, date time.Time) (*models.AttendanceEntry, error) {
	if e, ok := m.days[dayKey(classID, academicYear, date)]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) GetRange(ctx context.Context, classID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error) {
	return m.forRange, nil
}

func (m *mockAttendanceRepo) ListForStudent(ctx context.Context, studentID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error) {
	return m.student, nil
}

func (m *mockAttendanceRepo) DeleteDay(ctx context.Context, classID, academicYear string, date time.Time) (bool, error) {
	was := m.deleted
	m.deleted = true
	return !was, nil
}

type mockClassResolver struct {
	match models.MatchPrecision
}

func (m *mockClassResolver) ResolveClass(ctx context.Context, classRef, academicYear string) (*models.Class, models.MatchPrecision, error) {
	match := m.match
	if match == "" {
		match = models.MatchByID
	}
	return &models.Class{ID: "class-a", Name: "7A", AcademicYear: academicYear}, match, nil
}

func newTestAttendance(repo *mockAttendanceRepo) *AttendanceService {
	svc := NewAttendanceService(repo, &mockClassResolver{}, nil, zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func saveRequest() SaveDayRequest {
	return SaveDayRequest{
		AcademicYear: "2025-2026",
		ClassID:      "class-a",
		Date:         "2025-09-15",
		Records: []SaveDayRecord{
			{StudentID: "s1", Status: "present"},
			{StudentID: "s2", Status: "absent"},
			{StudentID: "s3", Status: "late"},
		},
		ActorID: "teacher-1",
	}
}

func TestSaveDayReplacesRosterAndDerivesCounts(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendance(repo)

	entry, err := svc.SaveDay(context.Background(), saveRequest())
	require.NoError(t, err)

	assert.Equal(t, "class-a", entry.ClassID)
	assert.Equal(t, "7A", entry.ClassName)
	assert.Len(t, entry.Records, 3)
	assert.Equal(t, 3, entry.TotalStudents)
	assert.Equal(t, 1, entry.PresentCount)
	assert.Equal(t, 1, entry.AbsentCount)
	assert.Equal(t, 1, entry.LateCount)

	// A second submission replaces the record set, never merges into it.
	req := saveRequest()
	req.Records = []SaveDayRecord{{StudentID: "s1", Status: "absent"}}
	entry, err = svc.SaveDay(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, entry.Records, 1)
	assert.Equal(t, 1, entry.AbsentCount)
	assert.Equal(t, 0, entry.PresentCount)
}

func TestSaveDayRejectsUnknownStatus(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})
	req := saveRequest()
	req.Records[0].Status = "attending"

	_, err := svc.SaveDay(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSaveDayRejectsFutureDate(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})
	req := saveRequest()
	req.Date = "2025-09-16"

	_, err := svc.SaveDay(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSaveDayRejectsDatesOlderThanAYear(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})
	req := saveRequest()
	req.Date = "2024-09-01"

	_, err := svc.SaveDay(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSaveDayRejectsMalformedAcademicYear(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})
	req := saveRequest()
	req.AcademicYear = "2025/2026"

	_, err := svc.SaveDay(context.Background(), req)
	require.Error(t, err)
}

func TestGetDayAbsentEntryIsEmptyResult(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{days: map[string]*models.AttendanceEntry{}})

	entry, err := svc.GetDay(context.Background(), "class-a", "2025-2026", "2025-09-10")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStudentHistorySkipsDaysWithoutTheStudent(t *testing.T) {
	date1 := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	date2 := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	date3 := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{student: []models.AttendanceEntry{
		{Date: date1, AcademicYear: "2025-2026", ClassID: "class-a", Records: models.AttendanceRecordList{
			{StudentID: "s1", Status: models.AttendancePresent},
		}},
		{Date: date2, AcademicYear: "2025-2026", ClassID: "class-a", Records: models.AttendanceRecordList{
			{StudentID: "s2", Status: models.AttendanceAbsent},
		}},
		{Date: date3, AcademicYear: "2025-2026", ClassID: "class-a", Records: models.AttendanceRecordList{
			{StudentID: "s1", Status: models.AttendanceLate},
		}},
	}}
	svc := newTestAttendance(repo)

	history, err := svc.StudentHistory(context.Background(), HistoryRequest{StudentID: "s1"})
	require.NoError(t, err)

	// The day recorded without s1 contributes nothing.
	assert.Len(t, history.Records, 2)
	assert.Equal(t, 2, history.Stats.TotalDays)
	assert.Equal(t, 1, history.Stats.PresentDays)
	assert.Equal(t, 1, history.Stats.LateDays)
	assert.Equal(t, 0, history.Stats.AbsentDays)
	// Late counts as attended.
	assert.Equal(t, "100.0", history.Stats.AttendanceRate)
}

func TestStudentHistoryEmptyRate(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})

	history, err := svc.StudentHistory(context.Background(), HistoryRequest{StudentID: "s9"})
	require.NoError(t, err)
	assert.Empty(t, history.Records)
	assert.Equal(t, "0.0", history.Stats.AttendanceRate)
}

func TestStudentHistoryRejectsInvertedWindow(t *testing.T) {
	svc := newTestAttendance(&mockAttendanceRepo{})

	_, err := svc.StudentHistory(context.Background(), HistoryRequest{
		StudentID: "s1",
		StartDate: "2025-09-10",
		EndDate:   "2025-09-01",
	})
	require.Error(t, err)
}

func TestDeleteDayNotFound(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendance(repo)

	require.NoError(t, svc.DeleteDay(context.Background(), "class-a", "2025-2026", "2025-09-10"))

	err := svc.DeleteDay(context.Background(), "class-a", "2025-2026", "2025-09-10")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
