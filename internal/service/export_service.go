package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
	"github.com/raihan-dev/school-core-api/pkg/export"
)

// ExportFormat names a supported download format.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type attendanceReader interface {
	GetDay(ctx context.Context, classID, academicYear, rawDate string) (*models.AttendanceEntry, error)
}

type paymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	Get(ctx context.Context, ledgerID string) (*models.Payment, error)
}

// ExportResult is a rendered document ready for download.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders attendance sheets and payment summaries for download.
// Rendering happens inline on the request path; there is no background queue.
type ExportService struct {
	attendance attendanceReader
	payments   paymentLister
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(attendance attendanceReader, payments paymentLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		payments:   payments,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// AttendanceSheet renders one class day as a downloadable table.
func (s *ExportService) AttendanceSheet(ctx context.Context, classID, academicYear, date string, format ExportFormat) (*ExportResult, error) {
	entry, err := s.attendance.GetDay(ctx, classID, academicYear, date)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no attendance recorded for that date")
	}

	data := export.Dataset{
		Headers: []string{"Student ID", "Student Name", "Status", "Notes"},
	}
	for _, rec := range entry.Records {
		data.Rows = append(data.Rows, map[string]string{
			"Student ID":   rec.StudentID,
			"Student Name": rec.StudentName,
			"Status":       string(rec.Status),
			"Notes":        rec.Notes,
		})
	}

	title := fmt.Sprintf("Attendance %s %s", entry.ClassName, date)
	base := fmt.Sprintf("attendance_%s_%s", entry.ClassID, date)
	return s.render(data, title, base, format)
}

// PaymentSummary renders ledger headers matching the filter.
func (s *ExportService) PaymentSummary(ctx context.Context, filter models.PaymentFilter, format ExportFormat) (*ExportResult, error) {
	filter.Page = 1
	filter.PageSize = 100
	ledgers, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Headers: []string{"Student", "Academic Year", "Total Fees", "Paid", "Remaining"},
	}
	for _, l := range ledgers {
		data.Rows = append(data.Rows, map[string]string{
			"Student":       l.StudentName,
			"Academic Year": l.AcademicYear,
			"Total Fees":    formatAmount(l.TotalFees),
			"Paid":          formatAmount(l.PaidAmount),
			"Remaining":     formatAmount(l.RemainingBalance),
		})
	}

	base := "payments"
	if filter.AcademicYear != "" {
		base = "payments_" + filter.AcademicYear
	}
	return s.render(data, "Payment Summary", base, format)
}

// LedgerStatement renders one ledger's entry list with its running totals.
func (s *ExportService) LedgerStatement(ctx context.Context, ledgerID string, format ExportFormat) (*ExportResult, *models.Payment, error) {
	payment, err := s.payments.Get(ctx, ledgerID)
	if err != nil {
		return nil, nil, err
	}

	data := export.Dataset{
		Headers: []string{"Date", "Amount", "Method", "Notes", "Recorded By"},
	}
	for _, e := range payment.Entries {
		data.Rows = append(data.Rows, map[string]string{
			"Date":        e.Date.Format("2006-01-02"),
			"Amount":      formatAmount(e.Amount),
			"Method":      string(e.Method),
			"Notes":       e.Notes,
			"Recorded By": e.RecordedBy,
		})
	}

	title := fmt.Sprintf("Ledger %s %s", payment.StudentID, payment.AcademicYear)
	base := fmt.Sprintf("ledger_%s_%s", payment.StudentID, payment.AcademicYear)
	result, err := s.render(data, title, base, format)
	if err != nil {
		return nil, nil, err
	}
	return result, payment, nil
}

func (s *ExportService) render(data export.Dataset, title, baseName string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: baseName + ".csv", ContentType: "text/csv", Data: payload}, nil
	case FormatPDF:
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: baseName + ".pdf", ContentType: "application/pdf", Data: payload}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
}

// formatAmount renders minor currency units as a decimal string.
func formatAmount(minor int64) string {
	return strconv.FormatFloat(float64(minor)/100, 'f', 2, 64)
}
