package student_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func newTestService() (student.Service, student.Repository) {
	repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
	return student.NewService(repo), repo
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	stu, err := svc.Create(ctx, student.NewStudent{
		NIS:           "20210001",
		Name:          "Asha Juma",
		Class:         "7A",
		GuardianName:  "Mama Juma",
		GuardianPhone: "+243810000001",
		GuardianEmail: "guardian@test.cd",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if stu.ID == "" {
		t.Error("Create() returned an empty ID")
	}
	if stu.IsActive == nil || !*stu.IsActive {
		t.Error("Create() must activate the student")
	}

	got, err := svc.GetByNIS(ctx, " 20210001 ")
	if err != nil {
		t.Fatalf("GetByNIS() failed: %v", err)
	}
	if got.ID != stu.ID {
		t.Errorf("GetByNIS() = %s, want %s", got.ID, stu.ID)
	}
}

func TestService_CheckNISUniqueness(t *testing.T) {
	svc, repo := newTestService()

	stu := testutil.CreateStudent(t, repo, "20210001", "Asha Juma", "7A", "")

	err := svc.CheckNISUniqueness("20210001")
	if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("CheckNISUniqueness() error = %v, want *core.ValidationError", err)
	}
	if err := svc.CheckNISUniqueness("20210001", stu); err != nil {
		t.Errorf("CheckNISUniqueness() rejected the excluded student: %v", err)
	}
	if err := svc.CheckNISUniqueness("20210002"); err != nil {
		t.Errorf("CheckNISUniqueness() failed: %v", err)
	}
}

func TestService_Create_duplicateNIS(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	testutil.CreateStudent(t, repo, "20210001", "Asha Juma", "7A", "")

	_, err := svc.Create(ctx, student.NewStudent{NIS: "20210001", Name: "Bakari Omar", Class: "7B"})
	if errors.Cause(err) != student.ErrNISTaken {
		t.Errorf("Create() error = %v, want %v", err, student.ErrNISTaken)
	}
}

func TestService_GetByID_notFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetByID(context.Background(), "4ad85a60-8063-4d24-8f2b-95c3a0f41b80")
	if errors.Cause(err) != student.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, student.ErrNotFound)
	}
}

func TestService_Update(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	stu := testutil.CreateStudent(t, repo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	// a partial update only touches the provided fields
	updated, err := svc.Update(ctx, stu.ID, student.UpdateStudent{Class: "8A"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Class != "8A" {
		t.Errorf("Class = %s, want 8A", updated.Class)
	}
	if updated.NIS != "20210001" || updated.Name != "Asha Juma" {
		t.Errorf("Update() mangled unset fields: %+v", updated)
	}

	inactive := false
	updated, err = svc.Update(ctx, stu.ID, student.UpdateStudent{IsActive: &inactive})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.IsActive == nil || *updated.IsActive {
		t.Error("Update() failed to deactivate the student")
	}
}

func TestService_Query(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	testutil.CreateStudent(t, repo, "20210001", "Asha Juma", "7A", "")
	testutil.CreateStudent(t, repo, "20210002", "Bakari Omar", "7B", "")
	stu3 := testutil.CreateStudent(t, repo, "20210003", "Chiku Asha", "7B", "")

	inactive := false
	if _, err := svc.Update(ctx, stu3.ID, student.UpdateStudent{IsActive: &inactive}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	active := true
	tests := []struct {
		name   string
		filter *student.QueryFilter
		want   int
	}{
		{name: "all", filter: nil, want: 3},
		{name: "by class", filter: &student.QueryFilter{Classes: []string{"7B"}}, want: 2},
		{name: "by name search", filter: &student.QueryFilter{Search: "asha"}, want: 2},
		{name: "by nis search", filter: &student.QueryFilter{Search: "20210002"}, want: 1},
		{name: "active only", filter: &student.QueryFilter{IsActive: &active}, want: 2},
		{name: "no match", filter: &student.QueryFilter{Classes: []string{"9Z"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := svc.Query(ctx, tt.filter, nil)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(students) != tt.want {
				t.Errorf("len(students) = %d, want %d", len(students), tt.want)
			}
		})
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	stu1 := testutil.CreateStudent(t, repo, "20210001", "Asha Juma", "7A", "")
	stu2 := testutil.CreateStudent(t, repo, "20210002", "Bakari Omar", "7B", "")

	if err := svc.Delete(ctx, stu1.ID, stu2.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.GetByID(ctx, stu1.ID); errors.Cause(err) != student.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, student.ErrNotFound)
	}
}
