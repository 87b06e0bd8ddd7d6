package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/raihan-dev/school-core-api/internal/models"
	"github.com/raihan-dev/school-core-api/pkg/academicyear"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

type paymentRepository interface {
	CreateLedger(ctx context.Context, payment *models.Payment, initial *models.PaymentEntry) (*models.Payment, error)
	AppendEntry(ctx context.Context, ledgerID string, entry *models.PaymentEntry) (*models.Payment, error)
	UpdateTotalFees(ctx context.Context, ledgerID string, totalFees int64) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

// PaymentService manages fee ledgers. All mutations are entry appends or fee
// adjustments; paid totals are derived and never set directly.
type PaymentService struct {
	repo      paymentRepository
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PaymentService{repo: repo, students: students, validator: validate, logger: logger}
	svc.validator.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return models.PaymentMethod(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// CreateLedgerRequest opens a ledger for one (student, academic year).
// PaidAmount is a convenience for migrated balances: a positive value becomes
// exactly one synthesized cash entry so the total stays entry-backed.
type CreateLedgerRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	TotalFees    int64  `json:"total_fees" validate:"gte=0"`
	PaidAmount   int64  `json:"paid_amount" validate:"gte=0"`
	ActorID      string `json:"-"`
}

// AppendEntryRequest records one payment against an existing ledger.
type AppendEntryRequest struct {
	LedgerID string `json:"-" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required"`
	Method   string `json:"method" validate:"required,payment_method"`
	Notes    string `json:"notes"`
	ActorID  string `json:"-"`
}

// UpdateFeesRequest adjusts the fee total for a ledger.
type UpdateFeesRequest struct {
	LedgerID  string `json:"-" validate:"required"`
	TotalFees int64  `json:"total_fees" validate:"gte=0"`
}

// CreateLedger opens the ledger, synthesizing the single initial entry when a
// starting paid amount was supplied.
func (s *PaymentService) CreateLedger(ctx context.Context, req CreateLedgerRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ledger payload")
	}
	if !academicyear.Valid(req.AcademicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}
	if req.PaidAmount > req.TotalFees {
		return nil, appErrors.Clone(appErrors.ErrOverpayment, "initial paid amount exceeds total fees")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payment := &models.Payment{
		StudentID:    student.ID,
		ParentID:     student.ParentID,
		AcademicYear: req.AcademicYear,
		TotalFees:    req.TotalFees,
		CreatedBy:    req.ActorID,
	}

	var initial *models.PaymentEntry
	if req.PaidAmount > 0 {
		initial = &models.PaymentEntry{
			Amount:     req.PaidAmount,
			Date:       time.Now().UTC(),
			Method:     models.PaymentMethodCash,
			Notes:      "Initial payment",
			RecordedBy: req.ActorID,
		}
	}

	stored, err := s.repo.CreateLedger(ctx, payment, initial)
	if err != nil {
		if errors.Is(err, appErrors.ErrDuplicateLedger) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateLedger, "ledger already exists for student and academic year")
		}
		if errors.Is(err, appErrors.ErrOverpayment) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ledger")
	}
	return stored, nil
}

// AppendEntry records a payment. The repository serializes concurrent appends
// on the header row; the second of two racing appends observes the first.
func (s *PaymentService) AppendEntry(ctx context.Context, req AppendEntryRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment entry payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	entry := &models.PaymentEntry{
		Amount:     req.Amount,
		Date:       date,
		Method:     models.PaymentMethod(strings.ToLower(req.Method)),
		Notes:      req.Notes,
		RecordedBy: req.ActorID,
	}

	payment, err := s.repo.AppendEntry(ctx, req.LedgerID, entry)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrInvalidAmount):
			return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment amount must be positive")
		case errors.Is(err, appErrors.ErrOverpayment):
			return nil, appErrors.Clone(appErrors.ErrOverpayment, "payment would exceed total fees")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("payment recorded",
		zap.String("ledger_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.Int64("amount", req.Amount),
		zap.Int64("paid_amount", payment.PaidAmount))
	return payment, nil
}

// UpdateTotalFees adjusts the fee total. Lowering it below the paid sum is
// rejected; recorded entries are never shrunk to fit.
func (s *PaymentService) UpdateTotalFees(ctx context.Context, req UpdateFeesRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	payment, err := s.repo.UpdateTotalFees(ctx, req.LedgerID, req.TotalFees)
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrOverpayment):
			return nil, appErrors.Clone(appErrors.ErrOverpayment, "total fees cannot be lower than amount already paid")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fees")
	}
	return payment, nil
}

// Get loads a ledger with entries and recomputed totals.
func (s *PaymentService) Get(ctx context.Context, ledgerID string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	return payment, nil
}

// GetForStudent loads the ledger for a (student, academic year).
func (s *PaymentService) GetForStudent(ctx context.Context, studentID, academicYear string) (*models.Payment, error) {
	if !academicyear.Valid(academicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}
	payment, err := s.repo.FindByStudentAndYear(ctx, studentID, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	return payment, nil
}

// List returns ledger summaries matching the filter with a total count.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	if filter.AcademicYear != "" && !academicyear.Valid(filter.AcademicYear) {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}
	ledgers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledgers")
	}
	return ledgers, total, nil
}
