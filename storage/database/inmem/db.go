// Package inmemdb provides map-backed repositories for tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		mutex sync.RWMutex
		table map[string]*student.Student
	}

	// attendanceTable keys records by "studentID|date" so upserts
	// resolve to at most one record per student per day.
	attendanceTable struct {
		mutex sync.RWMutex
		table map[string]*attendance.Record
	}

	DB struct {
		user       *userTable
		student    *studentTable
		attendance *attendanceTable
	}
)

func NewDB() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		student:    &studentTable{table: make(map[string]*student.Student)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
	}
}
