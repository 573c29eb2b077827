package core

import (
	"fmt"
	"time"
)

// Date is a calendar day, held as midnight in the location it was built for.
// Day and hour bucketing always happen in that location.
type Date struct {
	time.Time
}

// Clock is the single source of "now" and of the timezone used for bucketing.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock and reports times in Loc (time.Local when nil).
type SystemClock struct {
	Loc *time.Location
}

func (c SystemClock) Now() time.Time {
	return time.Now().In(c.Location())
}

func (c SystemClock) Location() *time.Location {
	if c.Loc == nil {
		return time.Local
	}
	return c.Loc
}

// FixedClock always returns At. Its location is At's location.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

func (c FixedClock) Location() *time.Location {
	return c.At.Location()
}

// NewDate creates a new Date from year, month, day in loc.
func NewDate(year, month, day int, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)}
}

// DateOf returns the calendar day t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return NewDate(t.Year(), int(t.Month()), t.Day(), loc)
}

// Today returns the current day according to c.
func Today(c Clock) Date {
	return DateOf(c.Now(), c.Location())
}

// Start is the first instant of the day.
func (d Date) Start() time.Time {
	return d.Time
}

// End is the last millisecond of the day, inclusive.
func (d Date) End() time.Time {
	return d.AddDays(1).Time.Add(-time.Millisecond)
}

// AddDays moves by n calendar days, keeping the location.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), int(d.Month()), d.Day()+n, d.Location())
}

// Contains reports whether t falls within the day.
func (d Date) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && !t.After(d.End())
}

// Key formats the day as yyyy-MM-dd.
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// Label is the short display form used by reports, e.g. "Wed, May 1".
func (d Date) Label() string {
	return d.Format("Mon, Jan 2")
}

// HourLabel buckets t by hour of day in loc using a 12-hour clock,
// e.g. "08:00 PM". Midnight is "12:00 AM" and noon is "12:00 PM".
func HourLabel(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	hour := t.Hour()
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:00 %s", hour, ampm)
}
