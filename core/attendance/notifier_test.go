package attendance_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	testutil "github.com/trezcool/mahudhurio/tests"
)

// newTestNotifier exposes the notifier itself for tests that dispatch
// directly instead of going through Service.Mark.
func newTestNotifier(t *testing.T) (attendance.Notifier, attendance.Repository, student.Repository) {
	t.Helper()

	db := inmemdb.NewDB()
	attRepo := inmemdb.NewAttendanceRepository(db)
	stuRepo := inmemdb.NewStudentRepository(db)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return attendance.NewNotifierMock(attRepo, stuRepo, mailSvc, testutil.NewLogger(), conf), attRepo, stuRepo
}

func markAbsent(t *testing.T, svc attendance.Service, studentID, date string) {
	t.Helper()
	if _, err := svc.Mark(context.Background(), attendance.MarkRequest{
		StudentID: studentID,
		Date:      date,
		Status:    attendance.StatusAbsent,
	}); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
}

func TestNotifier_firesOnceAtThreshold(t *testing.T) {
	emailsvc.ClearSentMessages()
	svc, _, stuRepo := newTestService(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	// below the threshold of 3, no notice goes out
	markAbsent(t, svc, stu.ID, "2021-03-01")
	markAbsent(t, svc, stu.ID, "2021-03-02")
	if n := len(emailsvc.SentMessages); n != 0 {
		t.Fatalf("sent %d messages below threshold, want 0", n)
	}

	// the third absence of the month triggers exactly one notice
	markAbsent(t, svc, stu.ID, "2021-03-03")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Fatalf("sent %d messages at threshold, want 1", n)
	}

	msg := emailsvc.SentMessages[0]
	if len(msg.To) != 1 || msg.To[0].Address != "guardian@test.cd" {
		t.Errorf("To = %v, want guardian@test.cd", msg.To)
	}
	if !strings.Contains(msg.Subject, "Asha Juma") {
		t.Errorf("Subject = %q, want the student's name in it", msg.Subject)
	}
	if !strings.Contains(msg.TextContent, "absent 3 times") {
		t.Errorf("TextContent = %q, want the absence count in it", msg.TextContent)
	}
	if !strings.Contains(msg.TextContent, "March 2021") {
		t.Errorf("TextContent = %q, want the month in it", msg.TextContent)
	}

	// absences past the threshold never notify again
	markAbsent(t, svc, stu.ID, "2021-03-04")
	markAbsent(t, svc, stu.ID, "2021-03-05")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Errorf("sent %d messages past threshold, want still 1", n)
	}
}

func TestNotifier_reMarkingAbsentDayNeverReFires(t *testing.T) {
	emailsvc.ClearSentMessages()
	svc, _, stuRepo := newTestService(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	markAbsent(t, svc, stu.ID, "2021-03-01")
	markAbsent(t, svc, stu.ID, "2021-03-02")
	markAbsent(t, svc, stu.ID, "2021-03-03")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Fatalf("sent %d messages at threshold, want 1", n)
	}

	// re-saving an already-absent day keeps the count at the threshold but
	// must not duplicate the notice
	markAbsent(t, svc, stu.ID, "2021-03-03")
	markAbsent(t, svc, stu.ID, "2021-03-01")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Errorf("sent %d messages after re-marks, want still 1", n)
	}
}

func TestNotifier_monthsAreIsolated(t *testing.T) {
	emailsvc.ClearSentMessages()
	svc, _, stuRepo := newTestService(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	// 2 absences in March + 1 in April never cross the monthly threshold
	markAbsent(t, svc, stu.ID, "2021-03-30")
	markAbsent(t, svc, stu.ID, "2021-03-31")
	markAbsent(t, svc, stu.ID, "2021-04-01")
	if n := len(emailsvc.SentMessages); n != 0 {
		t.Errorf("sent %d messages across months, want 0", n)
	}
}

func TestNotifier_noGuardianContact(t *testing.T) {
	emailsvc.ClearSentMessages()
	svc, _, stuRepo := newTestService(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "" /* no guardian email */)

	markAbsent(t, svc, stu.ID, "2021-03-01")
	markAbsent(t, svc, stu.ID, "2021-03-02")
	markAbsent(t, svc, stu.ID, "2021-03-03")
	if n := len(emailsvc.SentMessages); n != 0 {
		t.Errorf("sent %d messages without a guardian contact, want 0", n)
	}
}

// Two absent marks for different days can race such that the first dispatch
// already observes a count past the threshold. The notice must still go out,
// and only once.
func TestNotifier_countPastThresholdStillNotifiesOnce(t *testing.T) {
	emailsvc.ClearSentMessages()
	notifier, attRepo, stuRepo := newTestNotifier(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")
	for _, date := range []string{"2021-03-01", "2021-03-02", "2021-03-03", "2021-03-04"} {
		testutil.CreateRecord(t, attRepo, stu.ID, date, attendance.StatusAbsent)
	}

	notifier.AbsenceRecorded(stu.ID, "2021-03-04")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Fatalf("sent %d messages with count past threshold, want 1", n)
	}

	// the racing mark's own dispatch lands after; it must not re-send
	notifier.AbsenceRecorded(stu.ID, "2021-03-03")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Errorf("sent %d messages after second dispatch, want still 1", n)
	}
}

// Concurrent dispatches that all observe the threshold must produce a single
// notice.
func TestNotifier_concurrentDispatchesSendOneNotice(t *testing.T) {
	emailsvc.ClearSentMessages()
	notifier, attRepo, stuRepo := newTestNotifier(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")
	for _, date := range []string{"2021-03-01", "2021-03-02", "2021-03-03"} {
		testutil.CreateRecord(t, attRepo, stu.ID, date, attendance.StatusAbsent)
	}

	const dispatches = 10
	var wg sync.WaitGroup
	wg.Add(dispatches)
	for i := 0; i < dispatches; i++ {
		go func() {
			defer wg.Done()
			notifier.AbsenceRecorded(stu.ID, "2021-03-03")
		}()
	}
	wg.Wait()

	if n := len(emailsvc.SentMessages); n != 1 {
		t.Errorf("sent %d messages from concurrent dispatches, want 1", n)
	}
}

func TestNotifier_statusChangeToAbsentReCounts(t *testing.T) {
	emailsvc.ClearSentMessages()
	svc, _, stuRepo := newTestService(t)

	stu := testutil.CreateStudent(t, stuRepo, "20210001", "Asha Juma", "7A", "guardian@test.cd")

	markAbsent(t, svc, stu.ID, "2021-03-01")
	markAbsent(t, svc, stu.ID, "2021-03-02")

	// a present day corrected to absent counts as a fresh transition
	if _, err := svc.Mark(context.Background(), attendance.MarkRequest{
		StudentID: stu.ID,
		Date:      "2021-03-03",
		Status:    attendance.StatusPresent,
		TimeIn:    "07:45:00",
	}); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	if n := len(emailsvc.SentMessages); n != 0 {
		t.Fatalf("sent %d messages with 2 absences, want 0", n)
	}

	markAbsent(t, svc, stu.ID, "2021-03-03")
	if n := len(emailsvc.SentMessages); n != 1 {
		t.Errorf("sent %d messages at threshold, want 1", n)
	}
}
