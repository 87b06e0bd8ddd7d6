package models

import "time"

// EnrollmentStatus enumerates lifecycle states of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled    EnrollmentStatus = "enrolled"
	EnrollmentStatusWithdrawn   EnrollmentStatus = "withdrawn"
	EnrollmentStatusTransferred EnrollmentStatus = "transferred"
)

// Enrollment is the (academicYear, student, class) triple. Withdrawals are
// soft deletes: the deleted flag is set and the row is kept. At most one
// active enrollment may exist per (student, academic year).
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	ClassName    string           `db:"class_name" json:"class_name"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	Deleted      bool             `db:"deleted" json:"deleted"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	WithdrawnAt  *time.Time       `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// MatchPrecision tags how a roster lookup resolved its class. Legacy
// enrollment rows carry only the class display name, so an id lookup that
// comes back empty falls through to a name match. Callers can tell the two
// apart instead of being handed an ambiguous result.
type MatchPrecision string

const (
	MatchByID   MatchPrecision = "id"
	MatchByName MatchPrecision = "name"
)

// RosterResult is an active class roster plus the precision of the lookup
// that produced it.
type RosterResult struct {
	Enrollments []Enrollment   `json:"enrollments"`
	Match       MatchPrecision `json:"match"`
}

// Degraded reports whether the roster was resolved through the name fallback.
func (r RosterResult) Degraded() bool {
	return r.Match == MatchByName
}
