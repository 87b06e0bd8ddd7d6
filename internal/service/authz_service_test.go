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

type stubStudentReader struct {
	students map[string]*models.Student
}

func (m *stubStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type stubClassesTaught struct {
	assignments map[string][]models.ClassAssignment
}

func (m *stubClassesTaught) ClassesTaught(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error) {
	return m.assignments[teacherID], nil
}

func newTestAuthz() *AuthzService {
	students := &stubStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	index := &stubClassesTaught{assignments: map[string][]models.ClassAssignment{
		"teacher-1": {{TeacherID: "teacher-1", ClassID: "class-a", AcademicYear: "2025-2026"}},
	}}
	return NewAuthzService(students, index, NewMetricsService(), zap.NewNop())
}

func TestAuthorizeAdministrativeRolesAlwaysAllowed(t *testing.T) {
	svc := newTestAuthz()

	for _, role := range []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin} {
		decision, err := svc.Authorize(context.Background(),
			models.Actor{ID: "admin-1", Role: role},
			models.OpWriteClassAttendance,
			models.AuthzTarget{ClassID: "any-class", AcademicYear: "2025-2026"})
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "role %s", role)
	}
}

func TestAuthorizeTeacherAssignedClass(t *testing.T) {
	svc := newTestAuthz()
	actor := models.Actor{ID: "teacher-1", Role: models.RoleTeacher}

	decision, err := svc.Authorize(context.Background(), actor,
		models.OpReadClassAttendance,
		models.AuthzTarget{ClassID: "class-a", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeTeacherUnassignedClassDenied(t *testing.T) {
	svc := newTestAuthz()
	actor := models.Actor{ID: "teacher-1", Role: models.RoleTeacher}

	decision, err := svc.Authorize(context.Background(), actor,
		models.OpWriteClassAttendance,
		models.AuthzTarget{ClassID: "class-b", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, appErrors.ErrNotClassTeacher.Code, decision.ReasonCode)
}

func TestAuthorizeParentOwnChild(t *testing.T) {
	svc := newTestAuthz()
	actor := models.Actor{ID: "parent-1", Role: models.RoleParent}

	decision, err := svc.Authorize(context.Background(), actor,
		models.OpReadStudentHistory,
		models.AuthzTarget{StudentID: "student-1"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizeParentOtherChildDenied(t *testing.T) {
	svc := newTestAuthz()
	actor := models.Actor{ID: "parent-2", Role: models.RoleParent}

	decision, err := svc.Authorize(context.Background(), actor,
		models.OpReadPaymentLedger,
		models.AuthzTarget{StudentID: "student-1"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, appErrors.ErrNotStudentParent.Code, decision.ReasonCode)
}

func TestAuthorizeParentMissingStudentDenied(t *testing.T) {
	svc := newTestAuthz()
	actor := models.Actor{ID: "parent-1", Role: models.RoleParent}

	decision, err := svc.Authorize(context.Background(), actor,
		models.OpReadStudentHistory,
		models.AuthzTarget{StudentID: "ghost"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, appErrors.ErrAuthzTargetAbsent.Code, decision.ReasonCode)
}

func TestAuthorizeUnmatchedCombinationDenied(t *testing.T) {
	svc := newTestAuthz()

	// A teacher asking for a student-scoped ledger read matches no rule.
	decision, err := svc.Authorize(context.Background(),
		models.Actor{ID: "teacher-1", Role: models.RoleTeacher},
		models.OpReadPaymentLedger,
		models.AuthzTarget{StudentID: "student-1"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, decision.ReasonCode)

	// A parent asking for a class-scoped write matches no rule either.
	decision, err = svc.Authorize(context.Background(),
		models.Actor{ID: "parent-1", Role: models.RoleParent},
		models.OpWriteClassAttendance,
		models.AuthzTarget{ClassID: "class-a", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, appErrors.ErrRoleNotPermitted.Code, decision.ReasonCode)
}

func TestRequireMapsDenyToForbidden(t *testing.T) {
	svc := newTestAuthz()

	err := svc.Require(context.Background(),
		models.Actor{ID: "parent-2", Role: models.RoleParent},
		models.OpReadStudentHistory,
		models.AuthzTarget{StudentID: "student-1"})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Equal(t, appErrors.ErrNotStudentParent.Code, appErr.Code)
}
