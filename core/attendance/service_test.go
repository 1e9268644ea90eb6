package attendance_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func newTestService(t *testing.T) (attendance.Service, attendance.Repository, student.Repository) {
	t.Helper()

	db := inmemdb.NewDB()
	attRepo := inmemdb.NewAttendanceRepository(db)
	stuRepo := inmemdb.NewStudentRepository(db)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	notifier := attendance.NewNotifierMock(attRepo, stuRepo, mailSvc, testutil.NewLogger(), conf)
	return attendance.NewService(attRepo, stuRepo, notifier), attRepo, stuRepo
}

func TestService_Mark(t *testing.T) {
	svc, _, stuRepo := newTestService(t)
	ctx := context.Background()

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	rec, err := svc.Mark(ctx, attendance.MarkRequest{
		StudentID: stu.ID,
		Date:      "2021-03-01",
		Status:    attendance.StatusPresent,
		TimeIn:    "07:45:00",
	})
	if err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Mark() returned an empty record ID")
	}
	if rec.Status != attendance.StatusPresent {
		t.Errorf("Status = %s, want present", rec.Status)
	}
	if !rec.TimeIn.Valid || rec.TimeIn.String != "07:45:00" {
		t.Errorf("TimeIn = %v, want 07:45:00", rec.TimeIn)
	}

	// a second mark for the same day overwrites in place, keeping the ID
	rec2, err := svc.Mark(ctx, attendance.MarkRequest{
		StudentID: stu.ID,
		Date:      "2021-03-01",
		Status:    attendance.StatusSick,
		Notes:     "flu",
	})
	if err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	if rec2.ID != rec.ID {
		t.Errorf("overwrite changed record ID: %s -> %s", rec.ID, rec2.ID)
	}
	if rec2.Status != attendance.StatusSick {
		t.Errorf("Status = %s, want sick", rec2.Status)
	}
	// time-in never survives a non-present status
	if rec2.TimeIn.Valid {
		t.Errorf("TimeIn = %v, want unset", rec2.TimeIn)
	}
	if !rec2.Notes.Valid || rec2.Notes.String != "flu" {
		t.Errorf("Notes = %v, want flu", rec2.Notes)
	}
}

func TestService_Mark_daysAreIsolated(t *testing.T) {
	svc, _, stuRepo := newTestService(t)
	ctx := context.Background()

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	rec1, err := svc.Mark(ctx, attendance.MarkRequest{StudentID: stu.ID, Date: "2021-03-01", Status: attendance.StatusAbsent})
	if err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	rec2, err := svc.Mark(ctx, attendance.MarkRequest{StudentID: stu.ID, Date: "2021-03-02", Status: attendance.StatusPresent})
	if err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}

	if rec1.ID == rec2.ID {
		t.Error("different days share a record ID")
	}

	// marking day 2 never touched day 1
	prev, err := svc.Get(ctx, stu.ID, "2021-03-01")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if prev.Status != attendance.StatusAbsent {
		t.Errorf("day 1 status = %s, want absent", prev.Status)
	}
}

func TestService_Mark_unknownStudent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Mark(context.Background(), attendance.MarkRequest{
		StudentID: "4ad85a60-8063-4d24-8f2b-95c3a0f41b80",
		Date:      "2021-03-01",
		Status:    attendance.StatusPresent,
	})
	if errors.Cause(err) != student.ErrNotFound {
		t.Errorf("Mark() error = %v, want %v", err, student.ErrNotFound)
	}
}

func TestService_Mark_invalidRequest(t *testing.T) {
	svc, _, stuRepo := newTestService(t)
	ctx := context.Background()

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	tests := []struct {
		name string
		mr   attendance.MarkRequest
	}{
		{name: "no student", mr: attendance.MarkRequest{Date: "2021-03-01", Status: attendance.StatusPresent}},
		{name: "no date", mr: attendance.MarkRequest{StudentID: stu.ID, Status: attendance.StatusPresent}},
		{name: "bad date", mr: attendance.MarkRequest{StudentID: stu.ID, Date: "01/03/2021", Status: attendance.StatusPresent}},
		{name: "impossible date", mr: attendance.MarkRequest{StudentID: stu.ID, Date: "2021-02-30", Status: attendance.StatusPresent}},
		{name: "bad status", mr: attendance.MarkRequest{StudentID: stu.ID, Date: "2021-03-01", Status: "awol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Mark(ctx, tt.mr)
			if err == nil {
				t.Fatal("Mark() accepted an invalid request")
			}
			if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
				t.Errorf("Mark() error = %T, want *core.ValidationError", err)
			}
		})
	}
}

// concurrent marks for the same (student, date) pair must land on a single
// record.
func TestService_Mark_concurrent(t *testing.T) {
	svc, attRepo, stuRepo := newTestService(t)
	ctx := context.Background()

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	const marks = 20
	ids := make([]string, marks)
	var wg sync.WaitGroup
	wg.Add(marks)
	for i := 0; i < marks; i++ {
		go func(i int) {
			defer wg.Done()
			status := attendance.StatusPresent
			if i%2 == 0 {
				status = attendance.StatusPermit
			}
			rec, err := svc.Mark(ctx, attendance.MarkRequest{StudentID: stu.ID, Date: "2021-03-01", Status: status})
			if err != nil {
				t.Errorf("Mark() failed: %v", err)
				return
			}
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < marks; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent marks produced multiple record IDs: %s and %s", ids[0], ids[i])
		}
	}

	records, err := attRepo.QueryRecords(ctx, &attendance.QueryFilter{StudentID: stu.ID}, nil)
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
}

func TestService_Query(t *testing.T) {
	svc, _, stuRepo := newTestService(t)
	ctx := context.Background()

	asha := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "")
	bakari := testutil.CreateStudent(t, stuRepo, "20210002", "Bakari Omar", "7B", "")

	mark := func(stuID, date string, status attendance.Status) {
		if _, err := svc.Mark(ctx, attendance.MarkRequest{StudentID: stuID, Date: date, Status: status}); err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}
	}
	mark(asha.ID, "2021-03-01", attendance.StatusPresent)
	mark(asha.ID, "2021-03-02", attendance.StatusAbsent)
	mark(bakari.ID, "2021-03-01", attendance.StatusPresent)
	mark(bakari.ID, "2021-04-01", attendance.StatusSick)

	tests := []struct {
		name   string
		filter *attendance.QueryFilter
		want   int
	}{
		{name: "all", filter: nil, want: 4},
		{name: "by date", filter: &attendance.QueryFilter{Date: "2021-03-01"}, want: 2},
		{name: "by month", filter: &attendance.QueryFilter{Month: "2021-03"}, want: 3},
		{name: "by year", filter: &attendance.QueryFilter{Year: "2021"}, want: 4},
		{name: "by student", filter: &attendance.QueryFilter{StudentID: asha.ID}, want: 2},
		{name: "by class", filter: &attendance.QueryFilter{Classes: []string{"7B"}}, want: 2},
		{name: "by status", filter: &attendance.QueryFilter{Statuses: []attendance.Status{attendance.StatusAbsent}}, want: 1},
		{name: "by search", filter: &attendance.QueryFilter{Search: "bakari"}, want: 2},
		{name: "combined", filter: &attendance.QueryFilter{Month: "2021-03", Classes: []string{"7A"}}, want: 2},
		{name: "no match", filter: &attendance.QueryFilter{Date: "2022-01-01"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := svc.Query(ctx, tt.filter, nil)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("len(records) = %d, want %d", len(records), tt.want)
			}
		})
	}
}
