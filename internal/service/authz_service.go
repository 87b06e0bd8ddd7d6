package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classesTaughtResolver interface {
	ClassesTaught(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error)
}

// AuthzService decides, for a given actor and target, whether an operation is
// permitted. Checks are pure reads with no side effects and run outside any
// transaction.
type AuthzService struct {
	students studentReader
	index    classesTaughtResolver
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAuthzService constructs the resolver.
func NewAuthzService(students studentReader, index classesTaughtResolver, metrics *MetricsService, logger *zap.Logger) *AuthzService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthzService{students: students, index: index, metrics: metrics, logger: logger}
}

// Authorize evaluates the decision table, first matching rule wins:
//
//  1. admin / superadmin: allow for any target.
//  2. class-scoped operation, teacher: allow iff the teacher is assigned to
//     the target class in the target's academic year.
//  3. student-scoped operation, parent: allow iff the student row's parent
//     reference equals the actor. The check reads the student record
//     directly; enrollment rows may be stale, duplicated, or missing the
//     relationship and are never consulted for ownership.
//  4. otherwise: deny.
//
// Every deny carries a stable reason code the gateway maps to 403.
func (s *AuthzService) Authorize(ctx context.Context, actor models.Actor, op models.Operation, target models.AuthzTarget) (models.Decision, error) {
	decision, err := s.decide(ctx, actor, op, target)
	if err != nil {
		return models.Decision{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordAuthzDecision(decision.Allowed, decision.ReasonCode)
	}
	if !decision.Allowed {
		s.logger.Info("authorization denied",
			zap.String("actor_id", actor.ID),
			zap.String("actor_role", string(actor.Role)),
			zap.String("operation", string(op)),
			zap.String("reason_code", decision.ReasonCode))
	}
	return decision, nil
}

func (s *AuthzService) decide(ctx context.Context, actor models.Actor, op models.Operation, target models.AuthzTarget) (models.Decision, error) {
	if actor.Role.IsAdministrative() {
		return models.Allow(), nil
	}

	if op.TargetsClass() && actor.Role == models.RoleTeacher {
		assignments, err := s.index.ClassesTaught(ctx, actor.ID, target.AcademicYear)
		if err != nil {
			return models.Decision{}, err
		}
		if models.ContainsClass(assignments, target.ClassID) {
			return models.Allow(), nil
		}
		return deny(appErrors.ErrNotClassTeacher), nil
	}

	if op.TargetsStudent() && actor.Role == models.RoleParent {
		student, err := s.students.FindByID(ctx, target.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return deny(appErrors.ErrAuthzTargetAbsent), nil
			}
			return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student for authorization")
		}
		if student.ParentID == actor.ID {
			return models.Allow(), nil
		}
		return deny(appErrors.ErrNotStudentParent), nil
	}

	return deny(appErrors.ErrRoleNotPermitted), nil
}

// Require is the gateway-facing form: it converts a deny into the matching
// typed error so handlers surface a uniform 403 with the reason code.
func (s *AuthzService) Require(ctx context.Context, actor models.Actor, op models.Operation, target models.AuthzTarget) error {
	decision, err := s.Authorize(ctx, actor, op, target)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return appErrors.New(decision.ReasonCode, appErrors.ErrForbidden.Status, decision.Reason)
	}
	return nil
}

func deny(reason *appErrors.Error) models.Decision {
	return models.Deny(reason.Code, reason.Message)
}
