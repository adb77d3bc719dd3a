// Package dates resolves the run month of an extraction and the calendar
// variables filter templates are rendered with.
//
// A run month is identified by its last calendar day. Every derived date is a
// pure function of it, except current_date (wall clock) and the optional
// source window read from a control table.
package dates

import (
	"fmt"
	"time"
)

// RunMonth is the calendar month an extraction treats as current, held as the
// month's last day at midnight UTC. The zero value is not a valid run month.
type RunMonth struct {
	end time.Time
}

// RunMonthOf returns the run month containing d.
func RunMonthOf(d time.Time) RunMonth {
	y, m, _ := d.Date()
	return RunMonth{end: monthEnd(y, m)}
}

// PreviousRunMonth returns the month before now's month: the default run month
// lags the wall clock by one full month so the prior month has closed.
func PreviousRunMonth(now time.Time) RunMonth {
	y, m, _ := now.Date()
	return RunMonth{end: monthEnd(y, m-1)}
}

// ParseRunMonth accepts YYYY-MM-DD (any day of the month) or YYYY-MM.
func ParseRunMonth(s string) (RunMonth, error) {
	for _, layout := range []string{time.DateOnly, "2006-01"} {
		if d, err := time.Parse(layout, s); err == nil {
			return RunMonthOf(d), nil
		}
	}
	return RunMonth{}, fmt.Errorf("invalid run date %q: want YYYY-MM-DD or YYYY-MM", s)
}

// monthEnd returns the last day of the given month; time.Date normalises
// day 0 of the next month and out-of-range months.
func monthEnd(y int, m time.Month) time.Time {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

func (r RunMonth) Date() time.Time { return r.end }

// Start is the first day of the month.
func (r RunMonth) Start() time.Time {
	y, m, _ := r.end.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month (same as Date).
func (r RunMonth) End() time.Time { return r.end }

// MonthID formats the month as YYYYMM.
func (r RunMonth) MonthID() string { return r.end.Format("200601") }

// Minus returns the run month n months earlier.
func (r RunMonth) Minus(n int) RunMonth {
	y, m, _ := r.end.Date()
	return RunMonth{end: monthEnd(y, m-time.Month(n))}
}

func (r RunMonth) IsZero() bool { return r.end.IsZero() }

func (r RunMonth) Equal(o RunMonth) bool { return r.end.Equal(o.end) }

func (r RunMonth) String() string { return r.end.Format(time.DateOnly) }
