package student

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	ErrNISTaken = errors.New("a student with this NIS already exists")
)

// Student is an enrolled student. The attendance core only ever reads
// students; mutation happens through the management endpoints.
type Student struct {
	ID   string `json:"id"`
	NIS  string `json:"nis"` // unique student number, also the QR payload key
	Name string `json:"name"`
	// Class is a free label such as "7A"; attendance reports group by it.
	Class         string    `json:"class"`
	GuardianName  string    `json:"guardian_name"`
	GuardianPhone string    `json:"guardian_phone"`
	GuardianEmail string    `json:"guardian_email"`
	IsActive      *bool     `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	NIS           string `json:"nis" validate:"required,alphanum_"`
	Name          string `json:"name" validate:"required"`
	Class         string `json:"class" validate:"required"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone" validate:"omitempty,e164"`
	GuardianEmail string `json:"guardian_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc Service) error {
	ns.NIS = core.CleanString(ns.NIS)
	ns.Name = core.CleanString(ns.Name)
	ns.Class = core.CleanString(ns.Class)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckNISUniqueness(ns.NIS)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	NIS           string `json:"nis" validate:"omitempty,alphanum_"`
	Name          string `json:"name"`
	Class         string `json:"class"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone" validate:"omitempty,e164"`
	GuardianEmail string `json:"guardian_email" validate:"omitempty,email"`
	IsActive      *bool  `json:"is_active"`
}

func (us *UpdateStudent) Validate(origStu Student, validate *validator.Validate, svc Service) error {
	if nis := core.CleanString(us.NIS); nis != "" {
		us.NIS = nis
	} else {
		us.NIS = origStu.NIS
	}
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = origStu.Name
	}
	if class := core.CleanString(us.Class); class != "" {
		us.Class = class
	} else {
		us.Class = origStu.Class
	}
	us.GuardianName = core.CleanString(us.GuardianName)
	us.GuardianPhone = core.CleanString(us.GuardianPhone)
	us.GuardianEmail = core.CleanString(us.GuardianEmail, true /* lower */)

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckNISUniqueness(us.NIS, origStu)
}

// GetFilter finds a single Student by ID or by NIS.
type GetFilter struct {
	ID  string
	NIS string
}

type QueryFilter struct {
	Search   string   `query:"search"` // name or NIS
	Classes  []string `query:"class"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Classes == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
