package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

const paymentColumns = `id, student_id, parent_id, academic_year, total_fees, paid_amount, remaining_balance, created_by, created_at, updated_at`
const paymentEntryColumns = `id, payment_id, amount, date, method, notes, recorded_by, recorded_at`

// PaymentRepository persists ledger headers and their append-only entries.
// Header totals are a projection of the entry list: every mutation recomputes
// them from the entries inside the same transaction, and reads recompute via
// an aggregate join. A stored counter is never trusted as ground truth.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateLedger inserts a header and, when initialPaid is positive, exactly
// one backing entry for it. A paid amount never exists without an entry.
func (r *PaymentRepository) CreateLedger(ctx context.Context, payment *models.Payment, initial *models.PaymentEntry) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create ledger: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.GetContext(ctx, &exists,
		`SELECT 1 FROM payments WHERE student_id = $1 AND academic_year = $2 LIMIT 1`,
		payment.StudentID, payment.AcademicYear)
	if err == nil {
		err = appErrors.ErrDuplicateLedger
		return nil, err
	}
	if err != sql.ErrNoRows {
		err = fmt.Errorf("check existing ledger: %w", err)
		return nil, err
	}
	err = nil

	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	payment.Entries = nil
	if initial != nil {
		if initial.ID == "" {
			initial.ID = uuid.NewString()
		}
		initial.PaymentID = payment.ID
		if initial.RecordedAt.IsZero() {
			initial.RecordedAt = now
		}
		payment.Entries = []models.PaymentEntry{*initial}
	}
	payment.Recompute()
	if payment.PaidAmount > payment.TotalFees {
		err = appErrors.ErrOverpayment
		return nil, err
	}

	// The pre-check above is a fast path only. Two concurrent creates for the
	// same (student, year) can both pass it; the unique index on payments
	// (see scripts/schema.sql) makes the second insert fail instead.
	const insertHeader = `INSERT INTO payments (id, student_id, parent_id, academic_year, total_fees, paid_amount, remaining_balance, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :parent_id, :academic_year, :total_fees, :paid_amount, :remaining_balance, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertHeader, payment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = appErrors.ErrDuplicateLedger
			return nil, err
		}
		err = fmt.Errorf("insert ledger header: %w", err)
		return nil, err
	}

	if initial != nil {
		const insertEntry = `INSERT INTO payment_entries (id, payment_id, amount, date, method, notes, recorded_by, recorded_at)
            VALUES (:id, :payment_id, :amount, :date, :method, :notes, :recorded_by, :recorded_at)`
		if _, err = tx.NamedExecContext(ctx, insertEntry, initial); err != nil {
			err = fmt.Errorf("insert initial payment entry: %w", err)
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit create ledger: %w", err)
		return nil, err
	}
	return payment, nil
}

// AppendEntry appends one entry to the ledger. The header row is locked for
// the duration of the transaction and the entry sum is re-read inside it, so
// two concurrent appends serialize: the second sees the first's entry and is
// rejected if the combined total would exceed the fees. A failed append
// leaves the ledger untouched.
func (r *PaymentRepository) AppendEntry(ctx context.Context, ledgerID string, entry *models.PaymentEntry) (*models.Payment, error) {
	if entry.Amount <= 0 {
		return nil, appErrors.ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append entry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var header models.Payment
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 FOR UPDATE`, paymentColumns)
	if err = tx.GetContext(ctx, &header, query, ledgerID); err != nil {
		return nil, err
	}

	// Ground truth: the committed entries, re-read under the lock, not any
	// value captured before the transaction began.
	var currentPaid int64
	if err = tx.GetContext(ctx, &currentPaid,
		`SELECT COALESCE(SUM(amount), 0) FROM payment_entries WHERE payment_id = $1`, ledgerID); err != nil {
		err = fmt.Errorf("sum payment entries: %w", err)
		return nil, err
	}

	candidatePaid := currentPaid + entry.Amount
	if candidatePaid > header.TotalFees {
		err = appErrors.ErrOverpayment
		return nil, err
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.PaymentID = ledgerID
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = now
	}
	const insertEntry = `INSERT INTO payment_entries (id, payment_id, amount, date, method, notes, recorded_by, recorded_at)
        VALUES (:id, :payment_id, :amount, :date, :method, :notes, :recorded_by, :recorded_at)`
	if _, err = tx.NamedExecContext(ctx, insertEntry, entry); err != nil {
		err = fmt.Errorf("insert payment entry: %w", err)
		return nil, err
	}

	const updateHeader = `UPDATE payments
        SET paid_amount = $2, remaining_balance = total_fees - $2, updated_at = $3
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateHeader, ledgerID, candidatePaid, now); err != nil {
		err = fmt.Errorf("update ledger projection: %w", err)
		return nil, err
	}

	entriesQuery := fmt.Sprintf(`SELECT %s FROM payment_entries WHERE payment_id = $1 ORDER BY recorded_at ASC, id ASC`, paymentEntryColumns)
	var entries []models.PaymentEntry
	if err = tx.SelectContext(ctx, &entries, entriesQuery, ledgerID); err != nil {
		err = fmt.Errorf("reload payment entries: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit append entry: %w", err)
		return nil, err
	}

	header.Entries = entries
	header.UpdatedAt = now
	header.Recompute()
	return &header, nil
}

// UpdateTotalFees changes the fee total under the same header lock, rejecting
// totals below the already-paid sum. The paid amount itself is untouchable.
func (r *PaymentRepository) UpdateTotalFees(ctx context.Context, ledgerID string, totalFees int64) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update fees: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var header models.Payment
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 FOR UPDATE`, paymentColumns)
	if err = tx.GetContext(ctx, &header, query, ledgerID); err != nil {
		return nil, err
	}

	var currentPaid int64
	if err = tx.GetContext(ctx, &currentPaid,
		`SELECT COALESCE(SUM(amount), 0) FROM payment_entries WHERE payment_id = $1`, ledgerID); err != nil {
		err = fmt.Errorf("sum payment entries: %w", err)
		return nil, err
	}
	if currentPaid > totalFees {
		err = appErrors.ErrOverpayment
		return nil, err
	}

	now := time.Now().UTC()
	const update = `UPDATE payments
        SET total_fees = $2, paid_amount = $3, remaining_balance = $2 - $3, updated_at = $4
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, update, ledgerID, totalFees, currentPaid, now); err != nil {
		err = fmt.Errorf("update total fees: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit update fees: %w", err)
		return nil, err
	}

	header.TotalFees = totalFees
	header.PaidAmount = currentPaid
	header.RemainingBalance = totalFees - currentPaid
	header.UpdatedAt = now
	return &header, nil
}

// FindByID loads a ledger with its entries, recomputing the projections from
// the entry list rather than echoing the stored columns.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	if err := r.attachEntries(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByStudentAndYear loads the ledger for one (student, academic year).
func (r *PaymentRepository) FindByStudentAndYear(ctx context.Context, studentID, academicYear string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE student_id = $1 AND academic_year = $2`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentID, academicYear); err != nil {
		return nil, err
	}
	if err := r.attachEntries(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns ledger headers matching the filter with recomputed totals.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
JOIN students s ON s.id = p.student_id
LEFT JOIN payment_entries pe ON pe.payment_id = p.id`
	where := "WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		where += fmt.Sprintf(" AND p.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ParentID != "" {
		// The Student row decides parental ownership. The header's parent_id
		// is a creation-time copy and goes stale on parent reassignment.
		where += fmt.Sprintf(" AND s.parent_id = $%d", len(args)+1)
		args = append(args, filter.ParentID)
	}
	if filter.AcademicYear != "" {
		where += fmt.Sprintf(" AND p.academic_year = $%d", len(args)+1)
		args = append(args, filter.AcademicYear)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.parent_id, p.academic_year, p.total_fees,
        COALESCE(SUM(pe.amount), 0) AS paid_amount,
        p.total_fees - COALESCE(SUM(pe.amount), 0) AS remaining_balance,
        p.created_by, p.created_at, p.updated_at,
        s.name AS student_name, s.name_en AS student_name_en
        %s %s
        GROUP BY p.id, p.student_id, p.parent_id, p.academic_year, p.total_fees, p.created_by, p.created_at, p.updated_at, s.name, s.name_en
        ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base, where, size, offset)

	var ledgers []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &ledgers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payment ledgers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT p.id) %s %s", base, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payment ledgers: %w", err)
	}
	return ledgers, total, nil
}

func (r *PaymentRepository) attachEntries(ctx context.Context, payment *models.Payment) error {
	query := fmt.Sprintf(`SELECT %s FROM payment_entries WHERE payment_id = $1 ORDER BY recorded_at ASC, id ASC`, paymentEntryColumns)
	var entries []models.PaymentEntry
	if err := r.db.SelectContext(ctx, &entries, query, payment.ID); err != nil {
		return fmt.Errorf("load payment entries: %w", err)
	}
	payment.Entries = entries
	payment.Recompute()
	return nil
}
