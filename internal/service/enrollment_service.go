package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	"github.com/raihan-dev/school-core-api/pkg/academicyear"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type enrollmentWriter interface {
	ExistsActive(ctx context.Context, studentID, academicYear, excludeID string) (bool, error)
	FindActiveByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	TransferClass(ctx context.Context, id, classID, className string) error
	Withdraw(ctx context.Context, id string, at time.Time) error
}

type assignmentWriter interface {
	Exists(ctx context.Context, teacherID, classID, academicYear string) (bool, error)
	Create(ctx context.Context, assignment *models.ClassAssignment) error
	Deactivate(ctx context.Context, id string) error
}

// EnrollmentService is the admin write side of the relationship graph. The
// EnrollmentIndex reads it; this service mutates it and keeps the cached
// lookups coherent.
type EnrollmentService struct {
	enrollments enrollmentWriter
	assignments assignmentWriter
	classes     classReader
	index       *EnrollmentIndex
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(enrollments enrollmentWriter, assignments assignmentWriter, classes classReader, index *EnrollmentIndex, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		assignments: assignments,
		classes:     classes,
		index:       index,
		validator:   validate,
		logger:      logger,
	}
}

// EnrollRequest places a student into a class for an academic year.
type EnrollRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// TransferRequest moves an active enrollment to another class.
type TransferRequest struct {
	EnrollmentID string `json:"-" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
}

// AssignTeacherRequest links a teacher to a class for an academic year.
type AssignTeacherRequest struct {
	TeacherID    string   `json:"teacher_id" validate:"required"`
	ClassID      string   `json:"class_id" validate:"required"`
	AcademicYear string   `json:"academic_year" validate:"required"`
	Subjects     []string `json:"subjects"`
}

// Enroll creates the enrollment, enforcing the one-active-per-year rule.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !academicyear.Valid(req.AcademicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.AcademicYear != req.AcademicYear {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class belongs to a different academic year")
	}

	exists, err := s.enrollments.ExistsActive(ctx, req.StudentID, req.AcademicYear, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.ErrDuplicateEnrollment
	}

	enrollment := &models.Enrollment{
		AcademicYear: req.AcademicYear,
		StudentID:    req.StudentID,
		ClassID:      class.ID,
		ClassName:    class.Name,
		Status:       models.EnrollmentStatusEnrolled,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Transfer moves an enrollment to another class in the same academic year.
func (s *EnrollmentService) Transfer(ctx context.Context, req TransferRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := s.enrollments.TransferClass(ctx, req.EnrollmentID, class.ID, class.Name); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer enrollment")
	}
	return nil
}

// Withdraw soft-deletes the enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, enrollmentID string) error {
	if enrollmentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}
	if err := s.enrollments.Withdraw(ctx, enrollmentID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return nil
}

// AssignTeacher links a teacher to a class and drops the teacher's cached
// class list so the next authorization check sees the new assignment.
func (s *EnrollmentService) AssignTeacher(ctx context.Context, req AssignTeacherRequest) (*models.ClassAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !academicyear.Valid(req.AcademicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}

	exists, err := s.assignments.Exists(ctx, req.TeacherID, req.ClassID, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher is already assigned to this class")
	}

	assignment := &models.ClassAssignment{
		TeacherID:    req.TeacherID,
		ClassID:      req.ClassID,
		AcademicYear: req.AcademicYear,
		Subjects:     req.Subjects,
		Active:       true,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.index.InvalidateTeacher(ctx, req.TeacherID)
	return assignment, nil
}

// UnassignTeacher deactivates the assignment and invalidates the cache.
func (s *EnrollmentService) UnassignTeacher(ctx context.Context, assignmentID, teacherID string) error {
	if assignmentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	if err := s.assignments.Deactivate(ctx, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment")
	}
	if teacherID != "" {
		s.index.InvalidateTeacher(ctx, teacherID)
	}
	return nil
}
