package attendance

import (
	"errors"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
)

// Status is a student's attendance state for one calendar day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusSick    Status = "sick"
	StatusPermit  Status = "permit"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusSick, StatusPermit}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Record is a student's attendance for one calendar day.
// At most one Record exists per (StudentID, Date) pair; a later mark for the
// same pair overwrites the mutable fields in place and keeps the ID.
type Record struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Status    Status `json:"status"`
	// TimeIn is the clock time the student checked in (HH:MM:SS); only
	// meaningful when Status is present.
	TimeIn     null.String `json:"time_in"`
	Notes      null.String `json:"notes"`
	MarkedBy   null.String `json:"marked_by"`   // user ID, empty for QR self check-in
	RecordedAt time.Time   `json:"recorded_at"` // UTC, last write
}

// StudentRecord is a Record joined with the owning student's fields, as
// returned by filtered queries and consumed by the report aggregations.
type StudentRecord struct {
	Record
	StudentName string `json:"student_name"`
	StudentNIS  string `json:"student_nis"`
	Class       string `json:"class"`
}

// MarkRequest contains information needed to mark a student's attendance for one day.
type MarkRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,caldate"`
	Status    Status `json:"status" validate:"required,attstatus"`
	TimeIn    string `json:"time_in" validate:"omitempty,clocktime"`
	Notes     string `json:"notes"`
	MarkedBy  string `json:"marked_by"`
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	mr.StudentID = core.CleanString(mr.StudentID)
	mr.Date = core.CleanString(mr.Date)
	mr.Status = Status(core.CleanString(string(mr.Status), true /* lower */))
	mr.TimeIn = core.CleanString(mr.TimeIn)
	mr.Notes = core.CleanString(mr.Notes)
	mr.MarkedBy = core.CleanString(mr.MarkedBy)
	return validate.Struct(mr)
}

// check re-validates at the service boundary so that a caller bypassing
// MarkRequest.Validate still cannot write an invalid record.
func (mr MarkRequest) check() error {
	var flds []core.FieldError
	if mr.StudentID == "" {
		flds = append(flds, core.FieldError{Field: "student_id", Error: "this field is required"})
	}
	if _, err := core.ParseDate(mr.Date); err != nil {
		flds = append(flds, core.FieldError{Field: "date", Error: "must be a calendar date in YYYY-MM-DD format"})
	}
	if !mr.Status.Valid() {
		flds = append(flds, core.FieldError{Field: "status", Error: "invalid attendance status"})
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid mark request"), flds...)
	}
	return nil
}

type QueryFilter struct {
	Date      string   `query:"date"`
	Month     string   `query:"month"` // YYYY-MM
	Year      string   `query:"year"`
	StudentID string   `query:"student_id"`
	Classes   []string `query:"class"`
	Statuses  []Status `query:"status"`
	Search    string   `query:"search"` // student name or NIS
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Date == "" && qf.Month == "" && qf.Year == "" && qf.StudentID == "" &&
		qf.Classes == nil && qf.Statuses == nil && qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Date = core.CleanString(qf.Date)
	qf.Month = core.CleanString(qf.Month)
	qf.Year = core.CleanString(qf.Year)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Search = core.CleanString(qf.Search)
}

var (
	attStatusTag  = "attstatus"
	attStatusText = "must be one of: present, absent, sick, permit"
)

// InitValidators registers the attendance validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(attStatusTag, attStatusValidation)
	core.RegisterCustomTranslation(validate, translator, attStatusTag, attStatusText)
}

func attStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
