package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

type attendanceRow struct {
	ID         string      `db:"id"`
	StudentID  string      `db:"student_id"`
	Date       time.Time   `db:"date"`
	Status     string      `db:"status"`
	TimeIn     null.String `db:"time_in"`
	Notes      null.String `db:"notes"`
	MarkedBy   null.String `db:"marked_by"`
	RecordedAt time.Time   `db:"recorded_at"`
}

func (r attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Date:       r.Date.Format(core.DateFormat),
		Status:     attendance.Status(r.Status),
		TimeIn:     r.TimeIn,
		Notes:      r.Notes,
		MarkedBy:   r.MarkedBy,
		RecordedAt: r.RecordedAt,
	}
}

type studentRecordRow struct {
	attendanceRow
	StudentName string `db:"student_name"`
	StudentNIS  string `db:"student_nis"`
	Class       string `db:"class"`
}

func (r studentRecordRow) studentRecord() attendance.StudentRecord {
	return attendance.StudentRecord{
		Record:      r.record(),
		StudentName: r.StudentName,
		StudentNIS:  r.StudentNIS,
		Class:       r.Class,
	}
}

const recordCols = "a.id, a.student_id, a.date, a.status, a.time_in, a.notes, a.marked_by, a.recorded_at"

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) GetRecord(ctx context.Context, studentID, date string) (attendance.Record, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}

	var row attendanceRow
	q := "SELECT " + recordCols + " FROM attendance_record a WHERE a.student_id = $1 AND a.date = $2"
	if err := repo.db.GetContext(ctx, &row, q, studentID, date); err != nil {
		return attendance.Record{}, repo.trapNoRowsErr(err, "finding record")
	}
	return row.record(), nil
}

// UpsertRecord relies on the (student_id, date) unique constraint: a second
// mark for the same pair lands on the conflict arm and overwrites the mutable
// columns in place, keeping the original id. Concurrent marks for the same
// pair serialize on the constraint and cannot create a second row.
func (repo attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	rec.ID = uuid.New().String() // discarded on conflict

	q := `
		INSERT INTO attendance_record (id, student_id, date, status, time_in, notes, marked_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT attendance_record_student_date_key DO UPDATE
		SET status      = EXCLUDED.status,
		    time_in     = EXCLUDED.time_in,
		    notes       = EXCLUDED.notes,
		    marked_by   = EXCLUDED.marked_by,
		    recorded_at = EXCLUDED.recorded_at
		RETURNING id, student_id, date, status, time_in, notes, marked_by, recorded_at`

	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, q,
		rec.ID, rec.StudentID, rec.Date, rec.Status.String(), rec.TimeIn, rec.Notes, rec.MarkedBy, rec.RecordedAt)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting record")
	}
	return row.record(), nil
}

func (repo attendanceRepository) QueryRecords(
	ctx context.Context,
	filter *attendance.QueryFilter,
	ordering []core.DBOrdering,
) ([]attendance.StudentRecord, error) {
	q := "SELECT " + recordCols + ", s.name AS student_name, s.nis AS student_nis, s.class" +
		" FROM attendance_record a JOIN student s ON s.id = a.student_id"

	var conds []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Date != "" {
			conds = append(conds, "a.date = "+arg(filter.Date))
		}
		if filter.Month != "" {
			conds = append(conds, "to_char(a.date, 'YYYY-MM') = "+arg(filter.Month))
		}
		if filter.Year != "" {
			conds = append(conds, "to_char(a.date, 'YYYY') = "+arg(filter.Year))
		}
		if filter.StudentID != "" {
			conds = append(conds, "a.student_id = "+arg(filter.StudentID))
		}
		if len(filter.Classes) > 0 {
			conds = append(conds, "s.class = ANY("+arg(pq.Array(filter.Classes))+")")
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, status.String())
			}
			conds = append(conds, "a.status = ANY("+arg(pq.Array(statuses))+")")
		}
		if filter.Search != "" {
			val := arg("%" + filter.Search + "%")
			conds = append(conds, "(s.name ILIKE "+val+" OR s.nis ILIKE "+val+")")
		}
	}
	if conds != nil {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY a.date ASC, s.name ASC"
	}

	var rows []studentRecordRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	records := make([]attendance.StudentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.studentRecord())
	}
	return records, nil
}

func (repo attendanceRepository) CountMonthlyAbsences(ctx context.Context, studentID, month string) (int, error) {
	var count int
	q := "SELECT COUNT(*) FROM attendance_record WHERE student_id = $1 AND status = $2 AND to_char(date, 'YYYY-MM') = $3"
	if err := repo.db.GetContext(ctx, &count, q, studentID, attendance.StatusAbsent.String(), month); err != nil {
		return 0, errors.Wrap(err, "counting monthly absences")
	}
	return count, nil
}
