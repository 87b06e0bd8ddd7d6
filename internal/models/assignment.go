package models

import (
	"time"

	"github.com/lib/pq"
)

// ClassAssignment links a teacher to a class for an academic year. A teacher
// holds zero or more; a class may have several teachers (co-teaching). The
// assignment's academic year must match the class's own year.
type ClassAssignment struct {
	ID           string         `db:"id" json:"id"`
	TeacherID    string         `db:"teacher_id" json:"teacher_id"`
	ClassID      string         `db:"class_id" json:"class_id"`
	ClassName    string         `db:"class_name" json:"class_name"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Subjects     pq.StringArray `db:"subjects" json:"subjects"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ContainsClass reports whether any assignment in the set targets the class.
func ContainsClass(assignments []ClassAssignment, classID string) bool {
	for _, a := range assignments {
		if a.ClassID == classID {
			return true
		}
	}
	return false
}
