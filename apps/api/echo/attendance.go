package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
)

// sortable columns exposed on the attendance list endpoint; the joined
// student columns carry their query aliases
var recordOrderingFields = map[string]string{
	"date":        "a.date",
	"status":      "a.status",
	"recorded_at": "a.recorded_at",
	"name":        "s.name",
	"nis":         "s.nis",
	"class":       "s.class",
}

type attendanceApi struct {
	svc      attendance.Service
	students student.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.Service,
	students student.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, students: students, validate: validate}

	ag := g.Group("/attendance")

	// un-authed endpoint: the kiosk device scans student QR badges
	ag.POST("/scan", api.scan)

	// authed endpoints
	jg := ag.Group("", jwt)
	jg.POST("", api.mark, staffMiddleware())
	jg.GET("", api.query)
	jg.GET("/stats/daily", api.dailyStats)
	jg.GET("/stats/weekly", api.weeklyTrend)
	jg.GET("/stats/classes", api.classComparison)
	jg.GET("/reports/absences", api.absenceReport)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}

	// the marker is always the logged in user
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.MarkedBy = claims.Subject

	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// scan handles a QR badge self check-in: the badge payload carries the
// student's NIS; the student is marked present for today with the scan time.
func (api *attendanceApi) scan(ctx echo.Context) error {
	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.students.GetByNIS(ctx.Request().Context(), data.NIS)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by NIS")
	}
	if stu.IsActive != nil && !*stu.IsActive {
		return core.NewValidationError(errors.New("student is not active"))
	}

	now := time.Now()
	rec, err := api.svc.Mark(ctx.Request().Context(), attendance.MarkRequest{
		StudentID: stu.ID,
		Date:      now.Format(core.DateFormat),
		Status:    attendance.StatusPresent,
		TimeIn:    now.Format(core.ClockFormat),
	})
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, ScanResponse{Student: stu, Record: rec})
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.StudentRecord{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, recordOrderingFields)

	records, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if records == nil {
		records = []attendance.StudentRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) dailyStats(ctx echo.Context) error {
	date := core.CleanString(ctx.QueryParam("date"))
	if date == "" {
		date = time.Now().Format(core.DateFormat)
	} else if _, err := core.ParseDate(date); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a calendar date in YYYY-MM-DD format"})
	}

	records, err := api.svc.Query(ctx.Request().Context(), &attendance.QueryFilter{Date: date}, nil)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	return ctx.JSON(http.StatusOK, attendance.ComputeDailyStats(records, date))
}

func (api *attendanceApi) weeklyTrend(ctx echo.Context) error {
	month := core.CleanString(ctx.QueryParam("month"))
	if month == "" {
		month = time.Now().Format(core.MonthFormat)
	}

	records, err := api.svc.Query(ctx.Request().Context(), &attendance.QueryFilter{Month: month}, nil)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	return ctx.JSON(http.StatusOK, WeeklyTrendResponse{
		Month: month,
		Trend: attendance.ComputeWeeklyTrend(records),
	})
}

// classComparison reports each class's present percentage over a day or a
// month. Classes passed via `class` params are seeded into the result even
// when they have no records.
func (api *attendanceApi) classComparison(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.ClassStat{})
	}
	filter.Clean()
	if filter.Date == "" && filter.Month == "" {
		filter.Date = time.Now().Format(core.DateFormat)
	}

	seeded := filter.Classes
	filter.Classes = nil // compare all classes, seed the requested ones

	records, err := api.svc.Query(ctx.Request().Context(), filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	return ctx.JSON(http.StatusOK, attendance.ComputeClassComparison(records, seeded...))
}

func (api *attendanceApi) absenceReport(ctx echo.Context) error {
	month := core.CleanString(ctx.QueryParam("month"))
	if month == "" {
		month = time.Now().Format(core.MonthFormat)
	}

	records, err := api.svc.Query(ctx.Request().Context(), &attendance.QueryFilter{
		Month:    month,
		Statuses: []attendance.Status{attendance.StatusAbsent},
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	return ctx.JSON(http.StatusOK, AbsenceReportResponse{
		Month:  month,
		Report: attendance.ComputeMonthlyAbsenceRollup(records, month),
	})
}

type (
	ScanRequest struct {
		NIS string `json:"nis" validate:"required"`
	}

	ScanResponse struct {
		Student student.Student   `json:"student"`
		Record  attendance.Record `json:"record"`
	}

	WeeklyTrendResponse struct {
		Month string                 `json:"month"`
		Trend attendance.WeeklyTrend `json:"trend"`
	}

	AbsenceReportResponse struct {
		Month  string                     `json:"month"`
		Report []attendance.AbsenceRollup `json:"report"`
	}
)

func (sr *ScanRequest) Validate(validate *validator.Validate) error {
	sr.NIS = core.CleanString(sr.NIS)
	return validate.Struct(sr)
}
