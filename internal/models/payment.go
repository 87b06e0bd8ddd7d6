package models

import "time"

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque   PaymentMethod = "cheque"
	PaymentMethodCard     PaymentMethod = "card"
)

// Valid reports whether the method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCheque, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentEntry is an immutable append-only ledger line. Amounts are in minor
// currency units. Entries are never edited or deleted in the normal path.
type PaymentEntry struct {
	ID         string        `db:"id" json:"id"`
	PaymentID  string        `db:"payment_id" json:"payment_id"`
	Amount     int64         `db:"amount" json:"amount"`
	Date       time.Time     `db:"date" json:"date"`
	Method     PaymentMethod `db:"method" json:"method"`
	Notes      string        `db:"notes" json:"notes,omitempty"`
	RecordedBy string        `db:"recorded_by" json:"recorded_by"`
	RecordedAt time.Time     `db:"recorded_at" json:"recorded_at"`
}

// SumEntries adds up entry amounts. This sum is the only ground truth for a
// ledger's paid amount; stored header fields are projections of it.
func SumEntries(entries []PaymentEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// Payment is the ledger header for one (student, academic year). PaidAmount
// and RemainingBalance are recomputed from the entry list on every mutation
// and never accepted as caller input.
type Payment struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	ParentID         string    `db:"parent_id" json:"parent_id"`
	AcademicYear     string    `db:"academic_year" json:"academic_year"`
	TotalFees        int64     `db:"total_fees" json:"total_fees"`
	PaidAmount       int64     `db:"paid_amount" json:"paid_amount"`
	RemainingBalance int64     `db:"remaining_balance" json:"remaining_balance"`
	CreatedBy        string    `db:"created_by" json:"created_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	Entries []PaymentEntry `db:"-" json:"entries"`
}

// Recompute projects the header totals from the entry list.
func (p *Payment) Recompute() {
	p.PaidAmount = SumEntries(p.Entries)
	p.RemainingBalance = p.TotalFees - p.PaidAmount
}

// PaymentFilter captures list filtering criteria.
type PaymentFilter struct {
	StudentID    string
	ParentID     string
	AcademicYear string
	Page         int
	PageSize     int
}

// PaymentDetail enriches the header with student display info.
type PaymentDetail struct {
	Payment
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNameEn string `db:"student_name_en" json:"student_name_en,omitempty"`
}
