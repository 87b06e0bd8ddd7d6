package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raihan-dev/school-core-api/pkg/academicyear"
	"github.com/raihan-dev/school-core-api/pkg/response"
)

// AcademicYearHandler serves year labels for UI collaborators building pickers.
type AcademicYearHandler struct{}

// NewAcademicYearHandler creates a new handler.
func NewAcademicYearHandler() *AcademicYearHandler {
	return &AcademicYearHandler{}
}

// List godoc
// @Summary List academic years
// @Description Contiguous year labels centered on the current academic year
// @Tags AcademicYears
// @Produce json
// @Param yearsBack query int false "Years before current" default(2)
// @Param yearsForward query int false "Years after current" default(1)
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *AcademicYearHandler) List(c *gin.Context) {
	yearsBack := queryInt(c, "yearsBack")
	yearsForward := queryInt(c, "yearsForward")
	if c.Query("yearsBack") == "" {
		yearsBack = 2
	}
	if c.Query("yearsForward") == "" {
		yearsForward = 1
	}

	response.JSON(c, http.StatusOK, gin.H{
		"current": academicyear.Current(),
		"years":   academicyear.Enumerate(yearsBack, yearsForward),
	}, nil)
}
