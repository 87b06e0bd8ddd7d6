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

type mockEnrollmentWriter struct {
	active  map[string]bool
	created []*models.Enrollment
}

func (m *mockEnrollmentWriter) ExistsActive(ctx context.Context, studentID, academicYear, excludeID string) (bool, error) {
	return m.active[studentID+"|"+academicYear], nil
}

func (m *mockEnrollmentWriter) FindActiveByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentWriter) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "e1"
	m.created = append(m.created, enrollment)
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[enrollment.StudentID+"|"+enrollment.AcademicYear] = true
	return nil
}

func (m *mockEnrollmentWriter) TransferClass(ctx context.Context, id, classID, className string) error {
	return nil
}

func (m *mockEnrollmentWriter) Withdraw(ctx context.Context, id string, at time.Time) error {
	if !m.active[id] {
		return sql.ErrNoRows
	}
	delete(m.active, id)
	return nil
}

type mockAssignmentWriter struct {
	existing    map[string]bool
	created     []*models.ClassAssignment
	deactivated []string
}

func (m *mockAssignmentWriter) Exists(ctx context.Context, teacherID, classID, academicYear string) (bool, error) {
	return m.existing[teacherID+"|"+classID], nil
}

func (m *mockAssignmentWriter) Create(ctx context.Context, assignment *models.ClassAssignment) error {
	assignment.ID = "a1"
	m.created = append(m.created, assignment)
	return nil
}

func (m *mockAssignmentWriter) Deactivate(ctx context.Context, id string) error {
	if id == "ghost" {
		return sql.ErrNoRows
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newTestEnrollments(enr *mockEnrollmentWriter, asg *mockAssignmentWriter, cls *mockIndexClasses) *EnrollmentService {
	index := newTestIndex(&mockIndexEnrollments{}, cls, &mockIndexAssignments{})
	return NewEnrollmentService(enr, asg, cls, index, nil, zap.NewNop())
}

func TestEnrollCreatesActiveEnrollment(t *testing.T) {
	enr := &mockEnrollmentWriter{}
	cls := &mockIndexClasses{classes: map[string]*models.Class{
		"class-a": {ID: "class-a", Name: "7A", AcademicYear: "2025-2026"},
	}}
	svc := newTestEnrollments(enr, &mockAssignmentWriter{}, cls)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID:    "student-1",
		ClassID:      "class-a",
		AcademicYear: "2025-2026",
	})
	require.NoError(t, err)
	assert.Equal(t, "7A", enrollment.ClassName)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
}

func TestEnrollRejectsSecondActiveEnrollment(t *testing.T) {
	enr := &mockEnrollmentWriter{active: map[string]bool{"student-1|2025-2026": true}}
	cls := &mockIndexClasses{classes: map[string]*models.Class{
		"class-b": {ID: "class-b", Name: "7B", AcademicYear: "2025-2026"},
	}}
	svc := newTestEnrollments(enr, &mockAssignmentWriter{}, cls)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID:    "student-1",
		ClassID:      "class-b",
		AcademicYear: "2025-2026",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.Empty(t, enr.created)
}

func TestEnrollRejectsYearMismatch(t *testing.T) {
	cls := &mockIndexClasses{classes: map[string]*models.Class{
		"class-a": {ID: "class-a", Name: "7A", AcademicYear: "2024-2025"},
	}}
	svc := newTestEnrollments(&mockEnrollmentWriter{}, &mockAssignmentWriter{}, cls)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID:    "student-1",
		ClassID:      "class-a",
		AcademicYear: "2025-2026",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollUnknownClass(t *testing.T) {
	svc := newTestEnrollments(&mockEnrollmentWriter{}, &mockAssignmentWriter{}, &mockIndexClasses{})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID:    "student-1",
		ClassID:      "ghost",
		AcademicYear: "2025-2026",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWithdrawMissingEnrollment(t *testing.T) {
	svc := newTestEnrollments(&mockEnrollmentWriter{}, &mockAssignmentWriter{}, &mockIndexClasses{})

	err := svc.Withdraw(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignTeacher(t *testing.T) {
	asg := &mockAssignmentWriter{}
	svc := newTestEnrollments(&mockEnrollmentWriter{}, asg, &mockIndexClasses{})

	assignment, err := svc.AssignTeacher(context.Background(), AssignTeacherRequest{
		TeacherID:    "teacher-1",
		ClassID:      "class-a",
		AcademicYear: "2025-2026",
		Subjects:     []string{"math"},
	})
	require.NoError(t, err)
	assert.True(t, assignment.Active)
	require.Len(t, asg.created, 1)
}

func TestAssignTeacherAlreadyAssigned(t *testing.T) {
	asg := &mockAssignmentWriter{existing: map[string]bool{"teacher-1|class-a": true}}
	svc := newTestEnrollments(&mockEnrollmentWriter{}, asg, &mockIndexClasses{})

	_, err := svc.AssignTeacher(context.Background(), AssignTeacherRequest{
		TeacherID:    "teacher-1",
		ClassID:      "class-a",
		AcademicYear: "2025-2026",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, asg.created)
}

func TestUnassignTeacherMissing(t *testing.T) {
	svc := newTestEnrollments(&mockEnrollmentWriter{}, &mockAssignmentWriter{}, &mockIndexClasses{})

	err := svc.UnassignTeacher(context.Background(), "ghost", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
