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

type mockPaymentRepo struct {
	ledgers        map[string]*models.Payment
	createdInitial *models.PaymentEntry
	appendErr      error
}

func (m *mockPaymentRepo) CreateLedger(ctx context.Context, payment *models.Payment, initial *models.PaymentEntry) (*models.Payment, error) {
	if m.ledgers == nil {
		m.ledgers = make(map[string]*models.Payment)
	}
	for _, l := range m.ledgers {
		if l.StudentID == payment.StudentID && l.AcademicYear == payment.AcademicYear {
			return nil, appErrors.ErrDuplicateLedger
		}
	}
	payment.ID = "ledger-1"
	m.createdInitial = initial
	if initial != nil {
		initial.PaymentID = payment.ID
		payment.Entries = []models.PaymentEntry{*initial}
	}
	payment.Recompute()
	if payment.PaidAmount > payment.TotalFees {
		return nil, appErrors.ErrOverpayment
	}
	m.ledgers[payment.ID] = payment
	return payment, nil
}

func (m *mockPaymentRepo) AppendEntry(ctx context.Context, ledgerID string, entry *models.PaymentEntry) (*models.Payment, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	ledger, ok := m.ledgers[ledgerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if models.SumEntries(ledger.Entries)+entry.Amount > ledger.TotalFees {
		return nil, appErrors.ErrOverpayment
	}
	ledger.Entries = append(ledger.Entries, *entry)
	ledger.Recompute()
	return ledger, nil
}

func (m *mockPaymentRepo) UpdateTotalFees(ctx context.Context, ledgerID string, totalFees int64) (*models.Payment, error) {
	ledger, ok := m.ledgers[ledgerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if models.SumEntries(ledger.Entries) > totalFees {
		return nil, appErrors.ErrOverpayment
	}
	ledger.TotalFees = totalFees
	ledger.Recompute()
	return ledger, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if l, ok := m.ledgers[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Payment, error) {
	for _, l := range m.ledgers {
		if l.StudentID == studentID && l.AcademicYear == academicYear {
			return l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return nil, 0, nil
}

func newTestPayments(repo *mockPaymentRepo) *PaymentService {
	students := &stubStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", ParentID: "parent-1"},
	}}
	return NewPaymentService(repo, students, nil, zap.NewNop())
}

func TestCreateLedgerSynthesizesInitialEntry(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	payment, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    500000,
		PaidAmount:   100000,
		ActorID:      "admin-1",
	})
	require.NoError(t, err)

	require.NotNil(t, repo.createdInitial)
	assert.Equal(t, int64(100000), repo.createdInitial.Amount)
	assert.Equal(t, models.PaymentMethodCash, repo.createdInitial.Method)
	assert.Equal(t, "Initial payment", repo.createdInitial.Notes)

	require.Len(t, payment.Entries, 1)
	assert.Equal(t, int64(100000), payment.PaidAmount)
	assert.Equal(t, int64(400000), payment.RemainingBalance)
	assert.Equal(t, "parent-1", payment.ParentID)
}

func TestCreateLedgerZeroPaidHasNoEntry(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	payment, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    500000,
	})
	require.NoError(t, err)
	assert.Nil(t, repo.createdInitial)
	assert.Empty(t, payment.Entries)
	assert.Equal(t, int64(0), payment.PaidAmount)
}

func TestCreateLedgerRejectsInitialOverpayment(t *testing.T) {
	svc := newTestPayments(&mockPaymentRepo{})

	_, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    1000,
		PaidAmount:   2000,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErrors.FromError(err).Code)
}

func TestCreateLedgerDuplicate(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	req := CreateLedgerRequest{StudentID: "student-1", AcademicYear: "2025-2026", TotalFees: 1000}
	_, err := svc.CreateLedger(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CreateLedger(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateLedger.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestCreateLedgerUnknownStudent(t *testing.T) {
	svc := newTestPayments(&mockPaymentRepo{})

	_, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "ghost",
		AcademicYear: "2025-2026",
		TotalFees:    1000,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAppendEntryRecomputesFromEntries(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	_, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    500000,
		PaidAmount:   100000,
	})
	require.NoError(t, err)

	payment, err := svc.AppendEntry(context.Background(), AppendEntryRequest{
		LedgerID: "ledger-1",
		Amount:   150000,
		Date:     "2025-09-15",
		Method:   "bank_transfer",
		ActorID:  "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(250000), payment.PaidAmount)
	assert.Equal(t, int64(250000), payment.RemainingBalance)
	assert.Equal(t, models.SumEntries(payment.Entries), payment.PaidAmount)
}

func TestAppendEntryRejectsOverpayment(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	_, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    100000,
		PaidAmount:   90000,
	})
	require.NoError(t, err)

	_, err = svc.AppendEntry(context.Background(), AppendEntryRequest{
		LedgerID: "ledger-1",
		Amount:   20000,
		Date:     "2025-09-15",
		Method:   "cash",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestAppendEntryRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestPayments(&mockPaymentRepo{})

	for _, amount := range []int64{0, -500} {
		_, err := svc.AppendEntry(context.Background(), AppendEntryRequest{
			LedgerID: "ledger-1",
			Amount:   amount,
			Date:     "2025-09-15",
			Method:   "cash",
		})
		require.Error(t, err, "amount %d", amount)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAppendEntryRejectsUnknownMethod(t *testing.T) {
	svc := newTestPayments(&mockPaymentRepo{})

	_, err := svc.AppendEntry(context.Background(), AppendEntryRequest{
		LedgerID: "ledger-1",
		Amount:   1000,
		Date:     "2025-09-15",
		Method:   "barter",
	})
	require.Error(t, err)
}

func TestUpdateTotalFeesBelowPaidRejected(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newTestPayments(repo)

	_, err := svc.CreateLedger(context.Background(), CreateLedgerRequest{
		StudentID:    "student-1",
		AcademicYear: "2025-2026",
		TotalFees:    100000,
		PaidAmount:   50000,
	})
	require.NoError(t, err)

	_, err = svc.UpdateTotalFees(context.Background(), UpdateFeesRequest{LedgerID: "ledger-1", TotalFees: 40000})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErrors.FromError(err).Code)

	payment, err := svc.UpdateTotalFees(context.Background(), UpdateFeesRequest{LedgerID: "ledger-1", TotalFees: 200000})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), payment.RemainingBalance)
}
