package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Repository interface {
		// CheckNISUniqueness returns ErrNISTaken when another student than
		// the excluded ones carries the NIS.
		CheckNISUniqueness(ctx context.Context, nis string, excludedStudents ...Student) error
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		// GetStudent finds a single student by GetFilter.ID or GetFilter.NIS;
		// ErrNotFound when no student matches.
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Student.Name or Student.NIS.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, stu Student, isActive *bool) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckNISUniqueness(nis string, excludedStudents ...Student) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByNIS(ctx context.Context, nis string) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckNISUniqueness(nis string, excludedStudents ...Student) error {
	if err := svc.repo.CheckNISUniqueness(context.Background(), nis, excludedStudents...); err != nil {
		if errors.Cause(err) == ErrNISTaken {
			return core.NewValidationError(err, core.FieldError{Field: "nis", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	active := true
	stu := Student{
		NIS:           ns.NIS,
		Name:          ns.Name,
		Class:         ns.Class,
		GuardianName:  ns.GuardianName,
		GuardianPhone: ns.GuardianPhone,
		GuardianEmail: ns.GuardianEmail,
		IsActive:      &active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateStudent(ctx, stu)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

// GetByNIS resolves a scanned QR payload's student number.
func (svc *service) GetByNIS(ctx context.Context, nis string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{NIS: core.CleanString(nis)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	stu := Student{
		ID:            id,
		NIS:           us.NIS,
		Name:          us.Name,
		Class:         us.Class,
		GuardianName:  us.GuardianName,
		GuardianPhone: us.GuardianPhone,
		GuardianEmail: us.GuardianEmail,
		UpdatedAt:     time.Now().UTC(),
	}
	return svc.repo.UpdateStudent(ctx, stu, us.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteStudentsByID(ctx, ids...)
	return err
}
