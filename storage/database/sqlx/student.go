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

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

type studentRow struct {
	ID            string    `db:"id"`
	NIS           string    `db:"nis"`
	Name          string    `db:"name"`
	Class         string    `db:"class"`
	GuardianName  string    `db:"guardian_name"`
	GuardianPhone string    `db:"guardian_phone"`
	GuardianEmail string    `db:"guardian_email"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:            r.ID,
		NIS:           r.NIS,
		Name:          r.Name,
		Class:         r.Class,
		GuardianName:  r.GuardianName,
		GuardianPhone: r.GuardianPhone,
		GuardianEmail: r.GuardianEmail,
		IsActive:      &r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const studentCols = "id, nis, name, class, guardian_name, guardian_phone, guardian_email, is_active, created_at, updated_at"

// trapNoRowsErr maps psql "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CheckNISUniqueness(ctx context.Context, nis string, excludedStudents ...student.Student) error {
	args := []interface{}{nis}
	q := "SELECT EXISTS (SELECT 1 FROM student WHERE nis = $1"
	if len(excludedStudents) > 0 {
		ids := make([]string, 0, len(excludedStudents))
		for _, stu := range excludedStudents {
			ids = append(ids, stu.ID)
		}
		args = append(args, pq.Array(ids))
		q += " AND id <> ALL($2)"
	}
	q += ")"

	var taken bool
	if err := repo.db.GetContext(ctx, &taken, q, args...); err != nil {
		return errors.Wrap(err, "checking NIS uniqueness")
	}
	if taken {
		return student.ErrNISTaken
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	stu.ID = uuid.New().String()

	q := `
		INSERT INTO student (` + studentCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		stu.ID, stu.NIS, stu.Name, stu.Class, stu.GuardianName, stu.GuardianPhone, stu.GuardianEmail,
		stu.IsActive != nil && *stu.IsActive, stu.CreatedAt, stu.UpdatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return student.Student{}, student.ErrNISTaken
		}
		return student.Student{}, errors.Wrap(err, "creating student")
	}
	return stu, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	var cond string
	var arg interface{}
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		cond, arg = "id = $1", filter.ID
	case filter.NIS != "":
		cond, arg = "nis = $1", filter.NIS
	default:
		return student.Student{}, student.ErrNotFound
	}

	var row studentRow
	q := "SELECT " + studentCols + " FROM student WHERE " + cond
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) QueryStudents(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
) ([]student.Student, error) {
	q := "SELECT " + studentCols + " FROM student"

	var conds []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			val := arg("%" + filter.Search + "%")
			conds = append(conds, "(name ILIKE "+val+" OR nis ILIKE "+val+")")
		}
		if len(filter.Classes) > 0 {
			conds = append(conds, "class = ANY("+arg(pq.Array(filter.Classes))+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+arg(*filter.IsActive))
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
		q += " ORDER BY class ASC, name ASC"
	}

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, stu student.Student, isActive *bool) (student.Student, error) {
	if _, err := uuid.Parse(stu.ID); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	var active sql.NullBool
	if isActive != nil {
		active = sql.NullBool{Bool: *isActive, Valid: true}
	}

	q := `
		UPDATE student
		SET nis            = $2,
		    name           = $3,
		    class          = $4,
		    guardian_name  = $5,
		    guardian_phone = $6,
		    guardian_email = $7,
		    is_active      = COALESCE($8, is_active),
		    updated_at     = $9
		WHERE id = $1
		RETURNING ` + studentCols
	var row studentRow
	err := repo.db.GetContext(ctx, &row, q,
		stu.ID, stu.NIS, stu.Name, stu.Class, stu.GuardianName, stu.GuardianPhone, stu.GuardianEmail,
		active, stu.UpdatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return student.Student{}, student.ErrNISTaken
		}
		return student.Student{}, repo.trapNoRowsErr(err, "updating student")
	}
	return row.student(), nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM student WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return int(n), nil
}
