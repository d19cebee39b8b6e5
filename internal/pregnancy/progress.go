package pregnancy

import "time"

const (
	TotalDays  = 280
	TotalWeeks = 40
)

// Progress is the gestational position on a given day. A completed week is
// reported as day 7 of that week rather than day 0 of the next one.
type Progress struct {
	Week          int `json:"current_week"`
	DayInWeek     int `json:"current_day"`
	DaysRemaining int `json:"days_remaining"`
}

func NotStarted() Progress {
	return Progress{Week: 0, DayInWeek: 0, DaysRemaining: TotalDays}
}

func PastDue() Progress {
	return Progress{Week: TotalWeeks, DayInWeek: 0, DaysRemaining: 0}
}

// Compute derives progress from the due date when one is set, otherwise from
// the last menstrual period. Only calendar days (UTC) are compared.
// Weeks are 1-based and a completed week reports day 7: 10 days after the
// LMP is week 2, day 3, and 14 days is week 2, day 7.
func Compute(lmp, dueDate *time.Time, asOf time.Time) Progress {
	today := startOfUTCDay(asOf)

	if isSet(dueDate) {
		due := startOfUTCDay(*dueDate)
		if today.After(due) {
			return PastDue()
		}
		remaining := daysBetween(today, due)
		elapsed := TotalDays - remaining
		if elapsed < 0 {
			elapsed = 0
		}
		return fromElapsed(elapsed, remaining)
	}

	if isSet(lmp) {
		elapsed := daysBetween(startOfUTCDay(*lmp), today)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > TotalDays {
			return PastDue()
		}
		return fromElapsed(elapsed, TotalDays-elapsed)
	}

	return NotStarted()
}

func fromElapsed(elapsed, remaining int) Progress {
	if elapsed == 0 {
		return Progress{Week: 0, DayInWeek: 0, DaysRemaining: remaining}
	}
	week := elapsed/7 + 1
	day := elapsed % 7
	if day == 0 {
		week--
		day = 7
	}
	if week < 1 {
		week = 1
	}
	return Progress{Week: week, DayInWeek: day, DaysRemaining: remaining}
}

func isSet(t *time.Time) bool {
	return t != nil && !t.IsZero()
}

func startOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
