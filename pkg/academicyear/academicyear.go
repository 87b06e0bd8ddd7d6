// Package academicyear maps calendar dates onto the August-to-July school
// year. Labels use the "{startYear}-{startYear+1}" form everywhere an academic
// year is stored or queried.
package academicyear

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// boundaryMonth is the first month of a new academic year: August 1.
const boundaryMonth = time.August

var labelPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// Resolve returns the academic year label the given date falls in. Months
// January through July belong to the year that started the previous August.
func Resolve(t time.Time) string {
	startYear := t.Year()
	if t.Month() < boundaryMonth {
		startYear--
	}
	return Label(startYear)
}

// Current resolves the academic year for the present moment.
func Current() string {
	return Resolve(time.Now())
}

// Label formats a start year into the canonical label.
func Label(startYear int) string {
	return fmt.Sprintf("%d-%d", startYear, startYear+1)
}

// StartYear parses the leading year out of a label. The boolean reports
// whether the label is well formed.
func StartYear(label string) (int, bool) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	end, err := strconv.Atoi(m[2])
	if err != nil || end != start+1 {
		return 0, false
	}
	return start, true
}

// Valid reports whether the label is a well-formed academic year.
func Valid(label string) bool {
	_, ok := StartYear(label)
	return ok
}

// Enumerate produces a contiguous ordered list of academic year labels
// centered on the current year: yearsBack previous years, the current year,
// then yearsForward future years. Used by UI-facing collaborators building
// year pickers.
func Enumerate(yearsBack, yearsForward int) []string {
	return EnumerateFrom(time.Now(), yearsBack, yearsForward)
}

// EnumerateFrom is Enumerate anchored at an arbitrary date.
func EnumerateFrom(t time.Time, yearsBack, yearsForward int) []string {
	if yearsBack < 0 {
		yearsBack = 0
	}
	if yearsForward < 0 {
		yearsForward = 0
	}
	current, _ := StartYear(Resolve(t))
	years := make([]string, 0, yearsBack+yearsForward+1)
	for i := yearsBack; i > 0; i-- {
		years = append(years, Label(current-i))
	}
	years = append(years, Label(current))
	for i := 1; i <= yearsForward; i++ {
		years = append(years, Label(current+i))
	}
	return years
}
