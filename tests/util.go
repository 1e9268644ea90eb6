package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/core/user"
)

// NewConfig returns a self-contained test config so tests never depend on
// env vars or a config/.env file.
func NewConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		Debug:    false,
		TestMode: true,
		Build:    "test",

		AppName:          "Mahudhurio",
		SecretKey:        "0y=yj+1)&fe871nv9guw@p%r#vh3mm*oe88+2izh34sh6w)#@m",
		DefaultFromEmail: mail.Address{Name: "Mahudhurio", Address: "noreply@test.cd"},

		Server: core.ServerConfig{
			Host:                      "localhost",
			Addr:                      ":0",
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        4 * time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
		Attendance: core.AttendanceConfig{
			AbsenceThreshold: 3,
			NotifyTimeout:    time.Second,
		},
	}
}

type nopLogger struct{}

// NewLogger returns a no-op core.Logger.
func NewLogger() core.Logger { return nopLogger{} }

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	nis, name, class, guardianEmail string,
) student.Student {
	t.Helper()

	now := time.Now().UTC()
	active := true
	stu := student.Student{
		NIS:           nis,
		Name:          name,
		Class:         class,
		GuardianName:  "Guardian of " + name,
		GuardianEmail: guardianEmail,
		IsActive:      &active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	stu, err := repo.CreateStudent(context.Background(), stu)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stu
}

func CreateRecord(
	t *testing.T,
	repo attendance.Repository,
	studentID, date string,
	status attendance.Status,
) attendance.Record {
	t.Helper()

	rec, err := repo.UpsertRecord(context.Background(), attendance.Record{
		StudentID:  studentID,
		Date:       date,
		Status:     status,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
