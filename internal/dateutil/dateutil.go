// Package dateutil normalises timestamps to UTC day boundaries and does the
// day/week arithmetic every date-keyed lookup in the service relies on.
package dateutil

import "time"

// DayLayout is the wire format for day-granular dates (path params, log fields).
const DayLayout = "2006-01-02"

// Clock abstracts "now" so services and batch jobs can be tested without real time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// StartOfDay returns UTC midnight of t's UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day-normalised date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// SameMonth reports whether a and b fall in the same UTC calendar month and year.
func SameMonth(a, b time.Time) bool {
	ua, ub := a.UTC(), b.UTC()
	return ua.Year() == ub.Year() && ua.Month() == ub.Month()
}

// ISOWeekStart returns Monday 00:00 UTC of the ISO week containing t.
func ISOWeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	// time.Weekday has Sunday == 0, ISO weeks start on Monday.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Week is a half-open [Start, End) ISO week.
type Week struct {
	Start   time.Time
	End     time.Time
	ISOYear int
	ISOWeek int
}

// Contains reports whether t falls inside the week.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) Week {
	start := ISOWeekStart(t)
	year, week := start.ISOWeek()
	return Week{
		Start:   start,
		End:     start.AddDate(0, 0, 7),
		ISOYear: year,
		ISOWeek: week,
	}
}

// PreviousISOWeek returns the full ISO week before the one containing now.
func PreviousISOWeek(now time.Time) Week {
	return WeekOf(ISOWeekStart(now).AddDate(0, 0, -7))
}

// ParseDay parses a YYYY-MM-DD string or an RFC3339 timestamp and normalises it.
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}
