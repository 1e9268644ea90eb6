package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	Repository interface {
		// GetRecord returns the record for a (studentID, date) pair;
		// ErrNotFound when the day has not been marked.
		GetRecord(ctx context.Context, studentID, date string) (Record, error)
		// UpsertRecord atomically inserts the record or, when a record for
		// its (StudentID, Date) pair already exists, overwrites that
		// record's mutable fields in place. The stored record is returned;
		// on overwrite its ID is the original one.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		// QueryRecords applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the
		// student's Name or NIS.
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]StudentRecord, error)
		// CountMonthlyAbsences counts a student's absent records within a
		// "YYYY-MM" month.
		CountMonthlyAbsences(ctx context.Context, studentID, month string) (int, error)
	}

	Service interface {
		Mark(ctx context.Context, mr MarkRequest) (Record, error)
		Get(ctx context.Context, studentID, date string) (Record, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]StudentRecord, error)
	}

	service struct {
		repo     Repository
		students student.Repository
		notifier Notifier
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students student.Repository, notifier Notifier) Service {
	return &service{
		repo:     repo,
		students: students,
		notifier: notifier,
	}
}

// Mark records or overwrites a student's attendance for one calendar day.
// When the day's status lands on absent, the absence notifier is triggered;
// its outcome never affects the returned record.
func (svc *service) Mark(ctx context.Context, mr MarkRequest) (Record, error) {
	if err := mr.check(); err != nil {
		return Record{}, err
	}
	if _, err := svc.students.GetStudent(ctx, student.GetFilter{ID: mr.StudentID}); err != nil {
		return Record{}, errors.Wrap(err, "finding student")
	}

	// The previous status only drives the notifier trigger below; the
	// one-record-per-day invariant itself is enforced by UpsertRecord.
	var wasAbsent bool
	if prev, err := svc.repo.GetRecord(ctx, mr.StudentID, mr.Date); err == nil {
		wasAbsent = prev.Status == StatusAbsent
	} else if errors.Cause(err) != ErrNotFound {
		return Record{}, errors.Wrap(err, "finding previous record")
	}

	rec := Record{
		StudentID:  mr.StudentID,
		Date:       mr.Date,
		Status:     mr.Status,
		Notes:      null.NewString(mr.Notes, mr.Notes != ""),
		MarkedBy:   null.NewString(mr.MarkedBy, mr.MarkedBy != ""),
		RecordedAt: time.Now().UTC(),
	}
	// time-in only applies to a present student
	if mr.Status == StatusPresent {
		rec.TimeIn = null.NewString(mr.TimeIn, mr.TimeIn != "")
	}

	rec, err := svc.repo.UpsertRecord(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "upserting record")
	}

	if rec.Status == StatusAbsent && !wasAbsent {
		svc.notifier.AbsenceRecorded(rec.StudentID, rec.Date)
	}
	return rec, nil
}

func (svc *service) Get(ctx context.Context, studentID, date string) (Record, error) {
	return svc.repo.GetRecord(ctx, studentID, date)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]StudentRecord, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}
