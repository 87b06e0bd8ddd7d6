package models

// Operation identifies what an actor wants to do to a target.
type Operation string

const (
	OpReadClassAttendance  Operation = "attendance.class.read"
	OpWriteClassAttendance Operation = "attendance.class.write"
	OpReadStudentHistory   Operation = "attendance.student.read"
	OpReadPaymentLedger    Operation = "payments.ledger.read"
	OpWritePaymentLedger   Operation = "payments.ledger.write"
)

// TargetsClass reports whether the operation is scoped to a class roster or
// attendance entry.
func (op Operation) TargetsClass() bool {
	return op == OpReadClassAttendance || op == OpWriteClassAttendance
}

// TargetsStudent reports whether the operation is scoped to an individual
// student's history or ledger.
func (op Operation) TargetsStudent() bool {
	return op == OpReadStudentHistory || op == OpReadPaymentLedger || op == OpWritePaymentLedger
}

// AuthzTarget names the entity an operation acts on. ClassID and AcademicYear
// are set for class-scoped operations, StudentID for student-scoped ones.
type AuthzTarget struct {
	ClassID      string
	StudentID    string
	AcademicYear string
}

// Decision is the outcome of an authorization check. Denies always carry a
// stable reason code; Reason holds the matching human-readable text.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision from a reason code and text.
func Deny(code, reason string) Decision {
	return Decision{Allowed: false, ReasonCode: code, Reason: reason}
}
