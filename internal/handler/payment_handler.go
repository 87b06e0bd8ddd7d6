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

// PaymentHandler exposes the fee ledger endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	authz    *service.AuthzService
	exports  *service.ExportService
	retry    retry.Policy
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(payments *service.PaymentService, authz *service.AuthzService, exports *service.ExportService, policy retry.Policy) *PaymentHandler {
	return &PaymentHandler{payments: payments, authz: authz, exports: exports, retry: policy}
}

// Create godoc
// @Summary Create a payment ledger
// @Description Opens the ledger for one student and academic year
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreateLedgerRequest true "Ledger payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ledger payload"))
		return
	}
	req.ActorID = actor.ID

	payment, err := h.payments.CreateLedger(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List payment ledgers
// @Description Headers with recomputed totals; parents see only their own children
// @Tags Payments
// @Produce json
// @Param academicYear query string false "Academic year"
// @Param studentId query string false "Student id"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PaymentFilter{
		StudentID:    c.Query("studentId"),
		AcademicYear: c.Query("academicYear"),
		Page:         queryInt(c, "page"),
		PageSize:     queryInt(c, "pageSize"),
	}
	switch {
	case actor.Role.IsAdministrative():
	case actor.Role == models.RoleParent:
		// Parents are scoped to their own ledgers regardless of the filter.
		filter.ParentID = actor.ID
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrRoleNotPermitted, "role is not permitted to list ledgers"))
		return
	}

	var (
		ledgers []models.PaymentDetail
		total   int
	)
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		ledgers, total, innerErr = h.payments.List(c.Request.Context(), filter)
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	response.JSON(c, http.StatusOK, ledgers, pagination)
}

// Get godoc
// @Summary Get a payment ledger
// @Description Ledger with entries and recomputed totals
// @Tags Payments
// @Produce json
// @Param id path string true "Ledger id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payment *models.Payment
	err := withRetry(c.Request.Context(), h.retry, func() error {
		var innerErr error
		payment, innerErr = h.payments.Get(c.Request.Context(), c.Param("id"))
		return innerErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	target := models.AuthzTarget{StudentID: payment.StudentID, AcademicYear: payment.AcademicYear}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadPaymentLedger, target); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// AppendEntry godoc
// @Summary Record a payment
// @Description Appends one entry to the ledger; totals are recomputed from entries
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Ledger id"
// @Param payload body service.AppendEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/entries [post]
func (h *PaymentHandler) AppendEntry(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AppendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	req.LedgerID = c.Param("id")
	req.ActorID = actor.ID

	payment, err := h.payments.AppendEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// UpdateFees godoc
// @Summary Update total fees
// @Description Adjusts the fee total; rejected when below the paid sum
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Ledger id"
// @Param payload body service.UpdateFeesRequest true "Fees payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/fees [put]
func (h *PaymentHandler) UpdateFees(c *gin.Context) {
	var req service.UpdateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fees payload"))
		return
	}
	req.LedgerID = c.Param("id")

	payment, err := h.payments.UpdateTotalFees(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Summary godoc
// @Summary Export a payment summary report
// @Description Downloads ledger headers matching the filter as CSV or PDF
// @Tags Payments
// @Produce octet-stream
// @Param academicYear query string false "Academic year"
// @Param studentId query string false "Student id"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Router /reports/payments [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentID:    c.Query("studentId"),
		AcademicYear: c.Query("academicYear"),
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.PaymentSummary(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Export godoc
// @Summary Export a ledger statement
// @Description Downloads one ledger's entries as CSV or PDF
// @Tags Payments
// @Produce octet-stream
// @Param id path string true "Ledger id"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, payment, err := h.exports.LedgerStatement(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	target := models.AuthzTarget{StudentID: payment.StudentID, AcademicYear: payment.AcademicYear}
	if err := h.authz.Require(c.Request.Context(), actor, models.OpReadPaymentLedger, target); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
