package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	// Notifier is told about every day that lands on an absent status.
	// Implementations decide whether the student's guardian must be
	// notified; callers never wait on, nor fail because of, that outcome.
	Notifier interface {
		AbsenceRecorded(studentID, date string)
	}

	notifier struct {
		repo     Repository
		students student.Repository
		mailSvc  core.EmailService
		logger   core.Logger

		threshold int
		timeout   time.Duration

		mutex    sync.Mutex
		notified map[string]bool // (studentID, month) pairs already notified
	}
)

var _ Notifier = (*notifier)(nil)

func NewNotifier(
	repo Repository,
	students student.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Notifier {
	return &notifier{
		repo:      repo,
		students:  students,
		mailSvc:   mailSvc,
		logger:    logger,
		threshold: conf.Attendance.AbsenceThreshold,
		timeout:   conf.Attendance.NotifyTimeout,
		notified:  make(map[string]bool),
	}
}

// AbsenceRecorded recounts the month's absences for the student and, when the
// count has reached the threshold and no notice went out for the month yet,
// sends the guardian notice. Counting and delivery run off the request path,
// bounded by the configured timeout.
func (n *notifier) AbsenceRecorded(studentID, date string) {
	go n.notify(studentID, date)
}

func (n *notifier) notify(studentID, date string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	month := core.MonthOf(date)
	count, err := n.repo.CountMonthlyAbsences(ctx, studentID, month)
	if err != nil {
		n.logger.Error(fmt.Sprintf("counting absences for student %s in %s: %v", studentID, month, err), err)
		return
	}
	// A month's notice goes out at most once, the first time the count
	// reaches the threshold. Concurrent marks can both land here, or land
	// with a count already past the threshold; the sent marker below keeps
	// either case from sending twice or not at all.
	if count < n.threshold {
		return
	}

	stu, err := n.students.GetStudent(ctx, student.GetFilter{ID: studentID})
	if err != nil {
		n.logger.Error(fmt.Sprintf("finding student %s for absence notice: %v", studentID, err), err)
		return
	}
	if stu.GuardianEmail == "" {
		n.logger.Warn(fmt.Sprintf("student %s reached %d absences in %s but has no guardian contact", stu.NIS, count, month))
		return
	}

	if !n.markNotified(studentID, month) {
		return
	}
	n.mailSvc.SendMessages(guardianAbsenceNotice(stu, count, month))
}

// markNotified records that the month's notice for the student went out; it
// reports false when an earlier dispatch already claimed it.
func (n *notifier) markNotified(studentID, month string) bool {
	key := studentID + "|" + month
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.notified[key] {
		return false
	}
	n.notified[key] = true
	return true
}

// guardianAbsenceNotice formats the guardian-facing message; it embeds the
// student's name and class, the absence count and the month.
func guardianAbsenceNotice(stu student.Student, count int, month string) *core.EmailMessage {
	monthName := month
	if t, err := time.Parse(core.MonthFormat, month); err == nil {
		monthName = t.Format("January 2006")
	}
	return &core.EmailMessage{
		To:      []mail.Address{{Name: stu.GuardianName, Address: stu.GuardianEmail}},
		Subject: fmt.Sprintf("Absence notice for %s", stu.Name),
		BodyStr: fmt.Sprintf(
			"Dear guardian,\n\n"+
				"%s (class %s) has been recorded absent %d times in %s.\n"+
				"Please contact the school administration for further details.",
			stu.Name, stu.Class, count, monthName,
		),
	}
}

type notifierMock struct {
	notifier
}

// NewNotifierMock runs the threshold check and delivery synchronously so
// tests can assert on the messages the mail service captured.
func NewNotifierMock(
	repo Repository,
	students student.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Notifier {
	return &notifierMock{
		notifier: notifier{
			repo:      repo,
			students:  students,
			mailSvc:   mailSvc,
			logger:    logger,
			threshold: conf.Attendance.AbsenceThreshold,
			timeout:   conf.Attendance.NotifyTimeout,
			notified:  make(map[string]bool),
		},
	}
}

func (n *notifierMock) AbsenceRecorded(studentID, date string) {
	// run synchronously
	n.notify(studentID, date)
}
