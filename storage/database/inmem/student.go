package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, stu := range repo.db.table {
		students = append(students, *stu)
	}
	return students
}

func (repo *studentRepository) CheckNISUniqueness(ctx context.Context, nis string, excludedStudents ...student.Student) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]struct{}, len(excludedStudents))
	for _, stu := range excludedStudents {
		excluded[stu.ID] = struct{}{}
	}
	for _, stu := range repo.query() {
		if _, ok := excluded[stu.ID]; ok {
			continue
		}
		if stu.NIS == nis {
			return student.ErrNISTaken
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	if err := repo.CheckNISUniqueness(ctx, stu.NIS); err != nil {
		return student.Student{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stu.ID = uuid.New().String()
	repo.db.table[stu.ID] = &stu
	return stu, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if stu, ok := repo.db.table[filter.ID]; ok {
			return *stu, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	if filter.NIS != "" {
		for _, stu := range repo.query() {
			if stu.NIS == filter.NIS {
				return stu, nil
			}
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var students []student.Student
	for _, stu := range repo.query() {
		if matchesStudentFilter(stu, filter) {
			students = append(students, stu)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Class != students[j].Class {
			return students[i].Class < students[j].Class
		}
		return students[i].Name < students[j].Name
	})
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, stu student.Student, isActive *bool) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origStu, ok := repo.db.table[stu.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if stu.NIS != "" {
		origStu.NIS = stu.NIS
	}
	if stu.Name != "" {
		origStu.Name = stu.Name
	}
	if stu.Class != "" {
		origStu.Class = stu.Class
	}
	origStu.GuardianName = stu.GuardianName
	origStu.GuardianPhone = stu.GuardianPhone
	origStu.GuardianEmail = stu.GuardianEmail
	if isActive != nil {
		origStu.IsActive = isActive
	}
	origStu.UpdatedAt = stu.UpdatedAt

	repo.db.table[stu.ID] = origStu
	return *origStu, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}

func matchesStudentFilter(stu student.Student, filter *student.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(stu.Name), search) &&
			!strings.Contains(strings.ToLower(stu.NIS), search) {
			return false
		}
	}
	if filter.Classes != nil && !containsString(filter.Classes, stu.Class) {
		return false
	}
	if filter.IsActive != nil {
		if stu.IsActive == nil || *stu.IsActive != *filter.IsActive {
			return false
		}
	}
	return true
}
