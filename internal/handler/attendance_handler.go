package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raihan-dev/school-core-api/internal/models"
	"github.com/raihan-dev/school-core-api/internal/service"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
	"github.com/raihan-dev/school-core-api/pkg/response"
	"github.com/raihan-dev/school-core-api/pkg/retry"
)

// AttendanceHandler exposes the centralized attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	authz      *service.AuthzService
	exports    *service.ExportService
	retry      retry.Policy
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(attendance *service.AttendanceService, authz *service.AuthzService, exports *service.ExportService, policy retry.Policy) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, authz: authz, exports: exports, retry: policy}
}

// Get godoc
// @Summary Get class attendance
// @Description Returns one day's entry (date) or a range (startDate+endDate) for a class
// @Tags Attendance
// @Produce json
// @Param academicYear query string true "Academic year"
// @Param classId query string true "Class id"
// @Param date query string false "Single date (YYYY-MM-DD)"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	year := c.Query("academicYear")
	classID := c.Query("classId")
	date := c.Query("date")
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")

	if year == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear and classId are required"))
		return
	}
	// Exactly one addressing mode: a single date, or a complete range.
	single := date != ""
	ranged := startDate != "" || endDate != ""
	switch {
	case single && ranged:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "provide either date or startDate+endDate, not both"))
		return
	case !single && !ranged:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date or startDate+endDate is required"))
		return
	case ranged && (startDate == "" || endDate == ""):
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate and endDate must both be provided"))
		return
	}

	target := models.AuthzTarget{ClassID: classID, AcademicYear: year}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadClassAttendance, target); err != nil {
		response.Error(c, err)
		return
	}

	if single {
		var entry *models.AttendanceEntry
		err := withRetry(c.Request.Context(), h.retry, func() error {
			var innerErr error
			entry, innerErr = h.attendance.GetDay(c.Request.Context(), classID, year, date)
			return innerErr
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		if entry == nil {
			response.JSON(c, http.StatusOK, gin.H{"records": []any{}}, nil)
			return
		}
		response.JSON(c, http.StatusOK, entry, nil)
		return
	}

	var entries []models.AttendanceEntry
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		entries, innerErr = h.attendance.GetRange(c.Request.Context(), service.GetRangeRequest{
			AcademicYear: year,
			ClassID:      classID,
			StartDate:    startDate,
			EndDate:      endDate,
			Limit:        queryInt(c, "limit"),
		})
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Save godoc
// @Summary Save class attendance
// @Description Replaces the full day's roster for a class and date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SaveDayRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Save(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SaveDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	req.ActorID = actor.ID

	target := models.AuthzTarget{ClassID: req.ClassID, AcademicYear: req.AcademicYear}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpWriteClassAttendance, target); err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.attendance.SaveDay(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete a day's attendance
// @Description Removes the entry for one class and date
// @Tags Attendance
// @Produce json
// @Param academicYear query string true "Academic year"
// @Param classId query string true "Class id"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	year := c.Query("academicYear")
	classID := c.Query("classId")
	date := c.Query("date")
	if year == "" || classID == "" || date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear, classId and date are required"))
		return
	}

	if err := h.attendance.DeleteDay(c.Request.Context(), classID, year, date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentHistory godoc
// @Summary Get a student's attendance history
// @Description Per-day records with derived presence statistics
// @Tags Attendance
// @Produce json
// @Param id path string true "Student id"
// @Param academicYear query string false "Academic year"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("id")

	target := models.AuthzTarget{StudentID: studentID}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadStudentHistory, target); err != nil {
		response.Error(c, err)
		return
	}

	var history *models.StudentAttendanceHistory
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		history, innerErr = h.attendance.StudentHistory(c.Request.Context(), service.HistoryRequest{
			StudentID:    studentID,
			AcademicYear: c.Query("academicYear"),
			StartDate:    c.Query("startDate"),
			EndDate:      c.Query("endDate"),
			Limit:        queryInt(c, "limit"),
		})
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Export godoc
// @Summary Export a day's attendance sheet
// @Description Downloads one class day as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param academicYear query string true "Academic year"
// @Param classId query string true "Class id"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	year := c.Query("academicYear")
	classID := c.Query("classId")
	date := c.Query("date")
	if year == "" || classID == "" || date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear, classId and date are required"))
		return
	}

	target := models.AuthzTarget{ClassID: classID, AcademicYear: year}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadClassAttendance, target); err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.AttendanceSheet(c.Request.Context(), classID, year, date, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func queryInt(c *gin.Context, name string) int {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
