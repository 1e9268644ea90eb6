package attendance

import (
	"sort"
	"strconv"
	"strings"

	"github.com/trezcool/mahudhurio/core"
)

// Aggregations over already-fetched attendance rows. All functions are pure;
// report and dashboard surfaces recompute them from raw records on every read
// instead of persisting derived stats.

// DailyStats is the dashboard summary for one calendar day.
type DailyStats struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Sick    int    `json:"sick"`
	Permit  int    `json:"permit"`
	// UniquePresentStudents counts distinct students with a present
	// record; it can never exceed the number of distinct students even if
	// the row set carries duplicates.
	UniquePresentStudents int `json:"unique_present_students"`
	TotalRecorded         int `json:"total_recorded"`
}

// ComputeDailyStats filters records to the given date and counts by status.
func ComputeDailyStats(records []StudentRecord, date string) DailyStats {
	stats := DailyStats{Date: date}
	present := make(map[string]struct{})
	for _, rec := range records {
		if rec.Date != date {
			continue
		}
		stats.TotalRecorded++
		switch rec.Status {
		case StatusPresent:
			stats.Present++
			present[rec.StudentID] = struct{}{}
		case StatusAbsent:
			stats.Absent++
		case StatusSick:
			stats.Sick++
		case StatusPermit:
			stats.Permit++
		}
	}
	stats.UniquePresentStudents = len(present)
	return stats
}

// StatusCounts is one weekly bucket of a month's status counts.
type StatusCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Sick    int `json:"sick"`
	Permit  int `json:"permit"`
}

// WeeklyTrend buckets a month into 4 fixed 7-day intervals: days 1-7, 8-14,
// 15-21 and 22 onwards. Days 29-31 fall into the last bucket; this is a
// chart-friendly split, not an ISO week split.
type WeeklyTrend [4]StatusCounts

// ComputeWeeklyTrend buckets each record by floor((dayOfMonth-1)/7), clamped
// to the last bucket. Records with an unparseable date are skipped.
func ComputeWeeklyTrend(records []StudentRecord) WeeklyTrend {
	var trend WeeklyTrend
	for _, rec := range records {
		t, err := core.ParseDate(rec.Date)
		if err != nil {
			continue
		}
		bucket := (t.Day() - 1) / 7
		if bucket > 3 {
			bucket = 3
		}
		switch rec.Status {
		case StatusPresent:
			trend[bucket].Present++
		case StatusAbsent:
			trend[bucket].Absent++
		case StatusSick:
			trend[bucket].Sick++
		case StatusPermit:
			trend[bucket].Permit++
		}
	}
	return trend
}

// ClassStat is one class's share of present records.
type ClassStat struct {
	Class             string  `json:"class"`
	PresentPercentage float64 `json:"present_percentage"`
}

// ComputeClassComparison groups records by class label and computes each
// class's present percentage (present/total*100). Classes listed in `classes`
// appear in the result even with zero records, at percentage 0. The result is
// sorted by class label, case-insensitive.
func ComputeClassComparison(records []StudentRecord, classes ...string) []ClassStat {
	type counts struct{ present, total int }
	byClass := make(map[string]*counts)
	for _, class := range classes {
		byClass[class] = &counts{}
	}
	for _, rec := range records {
		c, ok := byClass[rec.Class]
		if !ok {
			c = &counts{}
			byClass[rec.Class] = c
		}
		c.total++
		if rec.Status == StatusPresent {
			c.present++
		}
	}

	stats := make([]ClassStat, 0, len(byClass))
	for class, c := range byClass {
		var pct float64
		if c.total > 0 {
			pct = float64(c.present) / float64(c.total) * 100
		}
		stats = append(stats, ClassStat{Class: class, PresentPercentage: pct})
	}
	sort.Slice(stats, func(i, j int) bool {
		li, lj := strings.ToLower(stats[i].Class), strings.ToLower(stats[j].Class)
		if li != lj {
			return li < lj
		}
		return stats[i].Class < stats[j].Class
	})
	return stats
}

// AbsenceRollup is one student's absences for one month, the read-side view
// behind the absence report page. It is derived independently of the
// notifier's own count query.
type AbsenceRollup struct {
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name"`
	StudentNIS  string   `json:"student_nis"`
	Class       string   `json:"class"`
	TotalAbsent int      `json:"total_absent"`
	AbsentDates []string `json:"absent_dates"`
}

// ComputeMonthlyAbsenceRollup groups the month's absent records by student,
// producing a count and the literal list of dates. The result is sorted by
// descending absence count, then student name.
func ComputeMonthlyAbsenceRollup(records []StudentRecord, month string) []AbsenceRollup {
	byStudent := make(map[string]*AbsenceRollup)
	for _, rec := range records {
		if rec.Status != StatusAbsent || core.MonthOf(rec.Date) != month {
			continue
		}
		r, ok := byStudent[rec.StudentID]
		if !ok {
			r = &AbsenceRollup{
				StudentID:   rec.StudentID,
				StudentName: rec.StudentName,
				StudentNIS:  rec.StudentNIS,
				Class:       rec.Class,
			}
			byStudent[rec.StudentID] = r
		}
		r.TotalAbsent++
		r.AbsentDates = append(r.AbsentDates, rec.Date)
	}

	rollup := make([]AbsenceRollup, 0, len(byStudent))
	for _, r := range byStudent {
		sort.Strings(r.AbsentDates)
		rollup = append(rollup, *r)
	}
	sort.Slice(rollup, func(i, j int) bool {
		if rollup[i].TotalAbsent != rollup[j].TotalAbsent {
			return rollup[i].TotalAbsent > rollup[j].TotalAbsent
		}
		return rollup[i].StudentName < rollup[j].StudentName
	})
	return rollup
}

// FormatPercent renders a percentage with 2 decimal places for reports;
// charts consume the raw float instead.
func FormatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64)
}
