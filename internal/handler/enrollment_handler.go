package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raihan-dev/school-core-api/internal/models"
	"github.com/raihan-dev/school-core-api/internal/service"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
	"github.com/raihan-dev/school-core-api/pkg/response"
	"github.com/raihan-dev/school-core-api/pkg/retry"
)

// EnrollmentHandler exposes the relationship graph: enrollments, rosters, and
// teacher assignments.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	index       *service.EnrollmentIndex
	authz       *service.AuthzService
	retry       retry.Policy
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, index *service.EnrollmentIndex, authz *service.AuthzService, policy retry.Policy) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, index: index, authz: authz, retry: policy}
}

// Enroll godoc
// @Summary Enroll a student
// @Description Creates the single active enrollment for a student and academic year
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Transfer godoc
// @Summary Transfer an enrollment
// @Description Moves an active enrollment to another class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment id"
// @Param payload body service.TransferRequest true "Transfer payload"
// @Success 204 {object} response.Envelope
// @Router /enrollments/{id}/transfer [post]
func (h *EnrollmentHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}
	req.EnrollmentID = c.Param("id")

	if err := h.enrollments.Transfer(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Description Soft-deletes the enrollment; the row is kept
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	if err := h.enrollments.Withdraw(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentEnrollment godoc
// @Summary Get a student's active enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student id"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/enrollment [get]
func (h *EnrollmentHandler) StudentEnrollment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("id")
	year := c.Query("academicYear")
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}

	target := models.AuthzTarget{StudentID: studentID, AcademicYear: year}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadStudentHistory, target); err != nil {
		response.Error(c, err)
		return
	}

	var enrollment *models.Enrollment
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		enrollment, innerErr = h.index.ActiveEnrollment(c.Request.Context(), studentID, year)
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ClassRoster godoc
// @Summary Get a class's active roster
// @Description Resolution precision is reported alongside the roster
// @Tags Enrollments
// @Produce json
// @Param id path string true "Class id"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *EnrollmentHandler) ClassRoster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Param("id")
	year := c.Query("academicYear")
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}

	target := models.AuthzTarget{ClassID: classID, AcademicYear: year}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadClassAttendance, target); err != nil {
		response.Error(c, err)
		return
	}

	var roster *models.RosterResult
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		roster, innerErr = h.index.ActiveRosterForClass(c.Request.Context(), classID, year)
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// TeacherClasses godoc
// @Summary List a teacher's classes
// @Tags Enrollments
// @Produce json
// @Param id path string true "Teacher id"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/classes [get]
func (h *EnrollmentHandler) TeacherClasses(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	teacherID := c.Param("id")
	year := c.Query("academicYear")
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}
	// Teachers may read their own list; everything else is administrative.
	if !actor.Role.IsAdministrative() && actor.ID != teacherID {
		response.Error(c, appErrors.Clone(appErrors.ErrRoleNotPermitted, "cannot read another teacher's classes"))
		return
	}

	var assignments []models.ClassAssignment
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		assignments, innerErr = h.index.ClassesTaught(c.Request.Context(), teacherID, year)
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// AssignTeacher godoc
// @Summary Assign a teacher to a class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.AssignTeacherRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *EnrollmentHandler) AssignTeacher(c *gin.Context) {
	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.enrollments.AssignTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UnassignTeacher godoc
// @Summary Deactivate a teacher assignment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Assignment id"
// @Param teacherId query string false "Teacher id for cache invalidation"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *EnrollmentHandler) UnassignTeacher(c *gin.Context) {
	if err := h.enrollments.UnassignTeacher(c.Request.Context(), c.Param("id"), c.Query("teacherId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
