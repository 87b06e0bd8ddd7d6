package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type enrollmentIndexRepository interface {
	FindActiveByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error)
	ListActiveByClassID(ctx context.Context, classID, academicYear string) ([]models.Enrollment, error)
	ListActiveByClassName(ctx context.Context, className, academicYear string) ([]models.Enrollment, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByNameAndYear(ctx context.Context, name, academicYear string) (*models.Class, error)
}

type assignmentReader interface {
	ListByTeacherAndYear(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error)
}

// EnrollmentIndex resolves the relationship graph {student-parent,
// student-class, class-teacher} for an academic year. Read-only: it never
// mutates an enrollment.
type EnrollmentIndex struct {
	enrollments enrollmentIndexRepository
	classes     classReader
	assignments assignmentReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewEnrollmentIndex constructs the index.
func NewEnrollmentIndex(enrollments enrollmentIndexRepository, classes classReader, assignments assignmentReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentIndex{
		enrollments: enrollments,
		classes:     classes,
		assignments: assignments,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// ActiveEnrollment returns the student's single active enrollment for the
// academic year, or NotFound.
func (s *EnrollmentIndex) ActiveEnrollment(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindActiveByStudentAndYear(ctx, studentID, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollment for student in academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment")
	}
	return enrollment, nil
}

// ClassesTaught returns the teacher's class assignments for the year. Results
// are cached; assignment writes invalidate through InvalidateTeacher.
func (s *EnrollmentIndex) ClassesTaught(ctx context.Context, teacherID, academicYear string) ([]models.ClassAssignment, error) {
	key := classesTaughtKey(teacherID, academicYear)
	var cached []models.ClassAssignment
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	assignments, err := s.assignments.ListByTeacherAndYear(ctx, teacherID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher assignments")
	}
	if len(assignments) == 0 {
		// A teacher with no assignments is valid but usually a data problem;
		// repair stays an external migration concern.
		s.logger.Warn("teacher has no class assignments",
			zap.String("teacher_id", teacherID),
			zap.String("academic_year", academicYear))
	}
	s.cache.Set(ctx, key, assignments)
	return assignments, nil
}

// InvalidateTeacher drops cached assignment lookups for a teacher.
func (s *EnrollmentIndex) InvalidateTeacher(ctx context.Context, teacherID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("classes-taught:%s:*", teacherID))
}

// ActiveRosterForClass resolves the active roster for a class. Resolution is
// two-stage: the class identifier first, then the class display name for
// legacy enrollment rows that never stored an id. The result is tagged with
// which stage matched so callers can distinguish precision; the fallback is
// logged as a degraded path, never treated as equivalent.
func (s *EnrollmentIndex) ActiveRosterForClass(ctx context.Context, classID, academicYear string) (*models.RosterResult, error) {
	enrollments, err := s.enrollments.ListActiveByClassID(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roster")
	}
	if len(enrollments) > 0 {
		return &models.RosterResult{Enrollments: enrollments, Match: models.MatchByID}, nil
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	byName, err := s.enrollments.ListActiveByClassName(ctx, class.Name, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roster by name")
	}
	if len(byName) > 0 {
		s.logger.Warn("roster resolved via class-name fallback",
			zap.String("class_id", classID),
			zap.String("class_name", class.Name),
			zap.String("academic_year", academicYear),
			zap.Int("enrollments", len(byName)))
		if s.metrics != nil {
			s.metrics.RecordDegradedLookup()
		}
		return &models.RosterResult{Enrollments: byName, Match: models.MatchByName}, nil
	}

	return &models.RosterResult{Enrollments: nil, Match: models.MatchByID}, nil
}

// ResolveClass looks a class up by id with the same name fallback used for
// rosters, returning the class and the match precision.
func (s *EnrollmentIndex) ResolveClass(ctx context.Context, classRef, academicYear string) (*models.Class, models.MatchPrecision, error) {
	class, err := s.classes.FindByID(ctx, classRef)
	if err == nil {
		return class, models.MatchByID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class, err = s.classes.FindByNameAndYear(ctx, classRef, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "class does not exist")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class by name")
	}
	s.logger.Warn("class resolved via display-name fallback",
		zap.String("class_ref", classRef),
		zap.String("academic_year", academicYear))
	if s.metrics != nil {
		s.metrics.RecordDegradedLookup()
	}
	return class, models.MatchByName, nil
}

func classesTaughtKey(teacherID, academicYear string) string {
	return fmt.Sprintf("classes-taught:%s:%s", teacherID, academicYear)
}
