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

const dateLayout = "2006-01-02"

type attendanceRepository interface {
	UpsertDay(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error)
	GetDay(ctx context.Context, classID, academicYear string, date time.Time) (*models.AttendanceEntry, error)
	GetRange(ctx context.Context, classID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error)
	ListForStudent(ctx context.Context, studentID, academicYear string, from, to *time.Time, limit int) ([]models.AttendanceEntry, error)
	DeleteDay(ctx context.Context, classID, academicYear string, date time.Time) (bool, error)
}

type classResolver interface {
	ResolveClass(ctx context.Context, classRef, academicYear string) (*models.Class, models.MatchPrecision, error)
}

// AttendanceService coordinates day-entry writes and history reads.
type AttendanceService struct {
	repo      attendanceRepository
	index     classResolver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, index classResolver, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, index: index, validator: validate, logger: logger, now: time.Now}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("academic_year", func(fl validator.FieldLevel) bool {
		return academicyear.Valid(fl.Field().String())
	})
	return svc
}

// SaveDayRecord is one student's status in a day submission.
type SaveDayRecord struct {
	StudentID    string `json:"student_id" validate:"required"`
	EnrollmentID string `json:"enrollment_id"`
	StudentName  string `json:"student_name"`
	Status       string `json:"status" validate:"required,attendance_status"`
	Notes        string `json:"notes"`
}

// SaveDayRequest is the full-roster write for one (class, date). Partial-day
// writes are not permitted; callers must submit the entire roster.
type SaveDayRequest struct {
	AcademicYear string          `json:"academic_year" validate:"required,academic_year"`
	ClassID      string          `json:"class_id" validate:"required"`
	Date         string          `json:"date" validate:"required"`
	Records      []SaveDayRecord `json:"records" validate:"required,min=1,dive"`
	ActorID      string          `json:"-"`
}

// GetRangeRequest filters a class's entries by date window.
type GetRangeRequest struct {
	AcademicYear string
	ClassID      string
	StartDate    string
	EndDate      string
	Limit        int
}

// HistoryRequest filters a student's attendance history.
type HistoryRequest struct {
	StudentID    string `validate:"required"`
	AcademicYear string
	StartDate    string
	EndDate      string
	Limit        int
}

// SaveDay replaces the day's entry with the submitted roster. The previous
// record set is discarded wholesale; there is no merge.
func (s *AttendanceService) SaveDay(ctx context.Context, req SaveDayRequest) (*models.AttendanceEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	date, err := s.parseEntryDate(req.Date)
	if err != nil {
		return nil, err
	}

	class, match, err := s.index.ResolveClass(ctx, req.ClassID, req.AcademicYear)
	if err != nil {
		return nil, err
	}
	if match == models.MatchByName {
		s.logger.Warn("attendance write targeting class resolved by name",
			zap.String("class_ref", req.ClassID),
			zap.String("academic_year", req.AcademicYear))
	}

	now := s.now().UTC()
	records := make(models.AttendanceRecordList, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, models.StudentAttendanceRecord{
			StudentID:    rec.StudentID,
			EnrollmentID: rec.EnrollmentID,
			StudentName:  rec.StudentName,
			Status:       models.AttendanceStatus(strings.ToLower(rec.Status)),
			Notes:        rec.Notes,
			RecordedAt:   now,
		})
	}

	entry := &models.AttendanceEntry{
		AcademicYear: req.AcademicYear,
		ClassID:      class.ID,
		ClassName:    class.Name,
		Date:         date,
		Records:      records,
		CreatedBy:    req.ActorID,
		UpdatedBy:    req.ActorID,
	}

	stored, err := s.repo.UpsertDay(ctx, entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to save attendance")
	}
	return stored, nil
}

// GetDay returns the entry for one date, or nil when no record exists — an
// absent day entry is an empty result, not an error.
func (s *AttendanceService) GetDay(ctx context.Context, classID, academicYear, rawDate string) (*models.AttendanceEntry, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.GetDay(ctx, classID, academicYear, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load attendance")
	}
	return entry, nil
}

// GetRange returns the class's entries within the window, newest first.
func (s *AttendanceService) GetRange(ctx context.Context, req GetRangeRequest) ([]models.AttendanceEntry, error) {
	from, to, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.repo.GetRange(ctx, req.ClassID, req.AcademicYear, from, to, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list attendance")
	}
	return entries, nil
}

// StudentHistory assembles a student's per-day records with derived counts.
// Entries that omit the student contribute nothing: no record for a day means
// no data, not absent.
func (s *AttendanceService) StudentHistory(ctx context.Context, req HistoryRequest) (*models.StudentAttendanceHistory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student id is required")
	}
	if req.AcademicYear != "" && !academicyear.Valid(req.AcademicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid academic year")
	}
	from, to, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := s.repo.ListForStudent(ctx, req.StudentID, req.AcademicYear, from, to, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load attendance history")
	}

	days := make([]models.StudentAttendanceDay, 0, len(entries))
	for _, entry := range entries {
		rec, ok := entry.Records.Find(req.StudentID)
		if !ok {
			continue
		}
		days = append(days, models.StudentAttendanceDay{
			Date:         entry.Date,
			AcademicYear: entry.AcademicYear,
			ClassID:      entry.ClassID,
			ClassName:    entry.ClassName,
			Status:       rec.Status,
			Notes:        rec.Notes,
		})
	}

	return &models.StudentAttendanceHistory{
		StudentID: req.StudentID,
		Records:   days,
		Stats:     models.ComputeAttendanceStats(days),
	}, nil
}

// DeleteDay removes a day's entry entirely.
func (s *AttendanceService) DeleteDay(ctx context.Context, classID, academicYear, rawDate string) error {
	date, err := parseDate(rawDate)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteDay(ctx, classID, academicYear, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to delete attendance")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return nil
}

// parseEntryDate enforces the write window: no future dates and nothing older
// than one year.
func (s *AttendanceService) parseEntryDate(raw string) (time.Time, error) {
	date, err := parseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.After(today) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "cannot record attendance for future dates")
	}
	if date.Before(today.AddDate(-1, 0, 0)) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "cannot record attendance for dates older than one year")
	}
	return date, nil
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}

func parseWindow(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		d, err := parseDate(start)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if end != "" {
		d, err := parseDate(end)
		if err != nil {
			return nil, nil, err
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return from, to, nil
}
