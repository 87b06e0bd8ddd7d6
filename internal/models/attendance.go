package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AttendanceStatus enumerates per-student day statuses. A student missing
// from a day's records has no data for that day; that is distinct from
// absent.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid reports whether the status is a known value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	}
	return false
}

// StudentAttendanceRecord is one student's status within a day entry.
type StudentAttendanceRecord struct {
	StudentID    string           `json:"student_id"`
	EnrollmentID string           `json:"enrollment_id,omitempty"`
	StudentName  string           `json:"student_name,omitempty"`
	Status       AttendanceStatus `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	RecordedAt   time.Time        `json:"recorded_at"`
}

// AttendanceRecordList stores the per-student records as a JSONB column.
type AttendanceRecordList []StudentAttendanceRecord

// Value implements driver.Valuer.
func (l AttendanceRecordList) Value() (driver.Value, error) {
	if l == nil {
		l = AttendanceRecordList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *AttendanceRecordList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attendance records type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Find returns the record for the given student, if present.
func (l AttendanceRecordList) Find(studentID string) (StudentAttendanceRecord, bool) {
	for _, rec := range l {
		if rec.StudentID == studentID {
			return rec, true
		}
	}
	return StudentAttendanceRecord{}, false
}

// AttendanceEntry is the single document for a (academic year, class, date)
// key. Writes replace the whole record set; there is no per-student merge.
type AttendanceEntry struct {
	ID            string               `db:"id" json:"id"`
	AcademicYear  string               `db:"academic_year" json:"academic_year"`
	ClassID       string               `db:"class_id" json:"class_id"`
	ClassName     string               `db:"class_name" json:"class_name"`
	Date          time.Time            `db:"date" json:"date"`
	Records       AttendanceRecordList `db:"records" json:"records"`
	TotalStudents int                  `db:"total_students" json:"total_students"`
	PresentCount  int                  `db:"present_count" json:"present_count"`
	AbsentCount   int                  `db:"absent_count" json:"absent_count"`
	LateCount     int                  `db:"late_count" json:"late_count"`
	CreatedBy     string               `db:"created_by" json:"created_by"`
	UpdatedBy     string               `db:"updated_by" json:"updated_by"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// RecomputeCounts derives the summary counters from the record list. The
// stored counters are a projection; the records are ground truth.
func (e *AttendanceEntry) RecomputeCounts() {
	e.TotalStudents = len(e.Records)
	e.PresentCount = 0
	e.AbsentCount = 0
	e.LateCount = 0
	for _, rec := range e.Records {
		switch rec.Status {
		case AttendancePresent:
			e.PresentCount++
		case AttendanceAbsent:
			e.AbsentCount++
		case AttendanceLate:
			e.LateCount++
		}
	}
}

// StudentAttendanceDay is one day of a student's attendance history.
type StudentAttendanceDay struct {
	Date         time.Time        `json:"date"`
	AcademicYear string           `json:"academic_year"`
	ClassID      string           `json:"class_id"`
	ClassName    string           `json:"class_name"`
	Status       AttendanceStatus `json:"status"`
	Notes        string           `json:"notes,omitempty"`
}

// AttendanceStats summarises a student's history. Days where the student has
// no record do not contribute to any counter.
type AttendanceStats struct {
	TotalDays      int    `json:"total_days"`
	PresentDays    int    `json:"present_days"`
	AbsentDays     int    `json:"absent_days"`
	LateDays       int    `json:"late_days"`
	AttendanceRate string `json:"attendance_rate"`
}

// ComputeAttendanceStats tallies the history rows. The rate counts late as
// attended, formatted with one decimal to match what the parent portal shows.
func ComputeAttendanceStats(days []StudentAttendanceDay) AttendanceStats {
	stats := AttendanceStats{TotalDays: len(days)}
	for _, d := range days {
		switch d.Status {
		case AttendancePresent:
			stats.PresentDays++
		case AttendanceAbsent:
			stats.AbsentDays++
		case AttendanceLate:
			stats.LateDays++
		}
	}
	if stats.TotalDays > 0 {
		rate := float64(stats.PresentDays+stats.LateDays) / float64(stats.TotalDays) * 100
		stats.AttendanceRate = fmt.Sprintf("%.1f", rate)
	} else {
		stats.AttendanceRate = "0.0"
	}
	return stats
}

// StudentAttendanceHistory bundles a student's rows with derived stats.
type StudentAttendanceHistory struct {
	StudentID string                 `json:"student_id"`
	Records   []StudentAttendanceDay `json:"records"`
	Stats     AttendanceStats        `json:"stats"`
}
