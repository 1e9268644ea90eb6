package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
)

type attendanceRepository struct {
	db       *attendanceTable
	students *studentTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance, students: db.student}
}

func recordKey(studentID, date string) string {
	return studentID + "|" + date
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, studentID, date string) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[recordKey(studentID, date)]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

// UpsertRecord holds the write lock for the whole lookup-then-write so two
// concurrent marks for the same (student, date) cannot both insert; the
// first record's id survives any overwrite.
func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := recordKey(rec.StudentID, rec.Date)
	if orig, ok := repo.db.table[key]; ok {
		rec.ID = orig.ID
	} else {
		rec.ID = uuid.New().String()
	}
	repo.db.table[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(
	ctx context.Context,
	filter *attendance.QueryFilter,
	ordering []core.DBOrdering,
) ([]attendance.StudentRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	repo.students.mutex.RLock()
	defer repo.students.mutex.RUnlock()

	records := make([]attendance.StudentRecord, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		stu, ok := repo.students.table[rec.StudentID]
		if !ok {
			continue
		}
		if matchesFilter(*rec, *stu, filter) {
			records = append(records, attendance.StudentRecord{
				Record:      *rec,
				StudentName: stu.Name,
				StudentNIS:  stu.NIS,
				Class:       stu.Class,
			})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].StudentName < records[j].StudentName
	})
	return records, nil
}

func (repo *attendanceRepository) CountMonthlyAbsences(ctx context.Context, studentID, month string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, rec := range repo.db.table {
		if rec.StudentID == studentID && rec.Status == attendance.StatusAbsent && core.MonthOf(rec.Date) == month {
			count++
		}
	}
	return count, nil
}

func matchesFilter(rec attendance.Record, stu student.Student, filter *attendance.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Date != "" && rec.Date != filter.Date {
		return false
	}
	if filter.Month != "" && core.MonthOf(rec.Date) != filter.Month {
		return false
	}
	if filter.Year != "" && !strings.HasPrefix(rec.Date, filter.Year+"-") {
		return false
	}
	if filter.StudentID != "" && rec.StudentID != filter.StudentID {
		return false
	}
	if filter.Classes != nil && !containsString(filter.Classes, stu.Class) {
		return false
	}
	if filter.Statuses != nil && !containsStatus(filter.Statuses, rec.Status) {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(stu.Name), search) &&
			!strings.Contains(strings.ToLower(stu.NIS), search) {
			return false
		}
	}
	return true
}

func containsString(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}

func containsStatus(statuses []attendance.Status, status attendance.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
