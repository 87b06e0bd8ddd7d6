package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type mockIndexEnrollments struct {
	active map[string]*models.Enrollment
	byID   map[string][]models.Enrollment
	byName map[string][]models.Enrollment
}

func (m *mockIndexEnrollments) FindActiveByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error) {
	if e, ok := m.active[studentID+"|"+academicYear]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIndexEnrollments) ListActiveByClassID(ctx context.Context, classID, academicYear string) ([]models.Enrollment, error) {
	return m.byID[classID], nil
}

func (m *mockIndexEnrollments) ListActiveByClassName(ctx context.Context, className, academicYear string) ([]models.Enrollment, error) {
	return m.byName[className], nil
}

type mockIndexClasses struct {
	classes map[string]*models.Class
	byName  map[string]*models.Class
}

func (m *mockIndexClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIndexClasses) FindByNameAndYear(ctx context.Context, name, academicYear string) (*models.Class, error) {
	if c, ok := m.byName[name]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockIndexAssignments struct {
	assignments map[string][]models.ClassAssignment
	calls       int
}

func (m *mockIndexAssignments) ListByTeacherAndYear(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error) {
	m.calls++
	return m.assignments[teacherID], nil
}

func newTestIndex(enr *mockIndexEnrollments, cls *mockIndexClasses, asg *mockIndexAssignments) *EnrollmentIndex {
	cacheSvc := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewEnrollmentIndex(enr, cls, asg, cacheSvc, NewMetricsService(), zap.NewNop())
}

func TestActiveEnrollmentNotFound(t *testing.T) {
	index := newTestIndex(&mockIndexEnrollments{}, &mockIndexClasses{}, &mockIndexAssignments{})

	_, err := index.ActiveEnrollment(context.Background(), "student-1", "2025-2026")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestActiveEnrollmentFound(t *testing.T) {
	enr := &mockIndexEnrollments{active: map[string]*models.Enrollment{
		"student-1|2025-2026": {ID: "e1", StudentID: "student-1", ClassID: "class-a"},
	}}
	index := newTestIndex(enr, &mockIndexClasses{}, &mockIndexAssignments{})

	enrollment, err := index.ActiveEnrollment(context.Background(), "student-1", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, "class-a", enrollment.ClassID)
}

func TestActiveRosterResolvedByID(t *testing.T) {
	enr := &mockIndexEnrollments{byID: map[string][]models.Enrollment{
		"class-a": {{ID: "e1", StudentID: "s1"}, {ID: "e2", StudentID: "s2"}},
	}}
	index := newTestIndex(enr, &mockIndexClasses{}, &mockIndexAssignments{})

	roster, err := index.ActiveRosterForClass(context.Background(), "class-a", "2025-2026")
	require.NoError(t, err)
	assert.Len(t, roster.Enrollments, 2)
	assert.Equal(t, models.MatchByID, roster.Match)
	assert.False(t, roster.Degraded())
}

func TestActiveRosterNameFallbackTagged(t *testing.T) {
	enr := &mockIndexEnrollments{
		byName: map[string][]models.Enrollment{
			"7A": {{ID: "e1", StudentID: "s1", ClassName: "7A"}},
		},
	}
	cls := &mockIndexClasses{classes: map[string]*models.Class{
		"class-a": {ID: "class-a", Name: "7A", AcademicYear: "2025-2026"},
	}}
	index := newTestIndex(enr, cls, &mockIndexAssignments{})

	roster, err := index.ActiveRosterForClass(context.Background(), "class-a", "2025-2026")
	require.NoError(t, err)
	assert.Len(t, roster.Enrollments, 1)
	assert.Equal(t, models.MatchByName, roster.Match)
	assert.True(t, roster.Degraded())
}

func TestActiveRosterUnknownClass(t *testing.T) {
	index := newTestIndex(&mockIndexEnrollments{}, &mockIndexClasses{}, &mockIndexAssignments{})

	_, err := index.ActiveRosterForClass(context.Background(), "ghost", "2025-2026")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestActiveRosterEmptyButClassExists(t *testing.T) {
	cls := &mockIndexClasses{classes: map[string]*models.Class{
		"class-a": {ID: "class-a", Name: "7A", AcademicYear: "2025-2026"},
	}}
	index := newTestIndex(&mockIndexEnrollments{}, cls, &mockIndexAssignments{})

	roster, err := index.ActiveRosterForClass(context.Background(), "class-a", "2025-2026")
	require.NoError(t, err)
	assert.Empty(t, roster.Enrollments)
	assert.False(t, roster.Degraded())
}

func TestClassesTaughtEmptyIsValid(t *testing.T) {
	index := newTestIndex(&mockIndexEnrollments{}, &mockIndexClasses{}, &mockIndexAssignments{})

	assignments, err := index.ClassesTaught(context.Background(), "teacher-1", "2025-2026")
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestResolveClassByIDThenNameFallback(t *testing.T) {
	cls := &mockIndexClasses{
		classes: map[string]*models.Class{
			"class-a": {ID: "class-a", Name: "7A"},
		},
		byName: map[string]*models.Class{
			"7B": {ID: "class-b", Name: "7B"},
		},
	}
	index := newTestIndex(&mockIndexEnrollments{}, cls, &mockIndexAssignments{})

	class, match, err := index.ResolveClass(context.Background(), "class-a", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, models.MatchByID, match)
	assert.Equal(t, "7A", class.Name)

	class, match, err = index.ResolveClass(context.Background(), "7B", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, models.MatchByName, match)
	assert.Equal(t, "class-b", class.ID)

	_, _, err = index.ResolveClass(context.Background(), "ghost", "2025-2026")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
