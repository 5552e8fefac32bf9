package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the date format used in booking API paths and storage keys.
const DayLayout = "2006-01-02"

var ErrInvalidDay = errors.New("invalid day")

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// DayBounds returns the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) TimeRange {
	start := StartOfDay(t, loc)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfDay truncates t to midnight in loc (t's own location when loc is nil).
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayKey formats the day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(DayLayout)
}

// ParseDay parses YYYY-MM-DD as midnight in loc. An empty value means today.
func ParseDay(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return StartOfDay(now, loc), nil
	}
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDay, s, err)
	}
	return t, nil
}

var esWeekdays = map[time.Weekday]string{
	time.Monday:    "Lunes",
	time.Tuesday:   "Martes",
	time.Wednesday: "Miércoles",
	time.Thursday:  "Jueves",
	time.Friday:    "Viernes",
	time.Saturday:  "Sábado",
	time.Sunday:    "Domingo",
}

// FormatAppointmentTime renders a start time the way the front desk shows it,
// e.g. "Martes, 04.03.2025, 10:30". loc may be nil.
func FormatAppointmentTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s, %s, %s", esWeekdays[t.Weekday()], t.Format("02.01.2006"), t.Format("15:04"))
}

// FormatClock renders the minute clock.
func FormatClock(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}
