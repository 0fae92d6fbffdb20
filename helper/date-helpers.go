package helper

import (
	"fmt"
	"strings"
	"time"

	"github.com/relloyd/scdpipe/constants"
)

// dateLayouts are tried in order when parsing source dates and timestamps.
var dateLayouts = []string{
	constants.DateFormat,
	constants.TimestampFormat,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses s using the supported layouts and returns the time in UTC
// truncated to whole seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse %q as a date or timestamp", s)
}

// ParseDate parses s like ParseTimestamp and truncates the result to the calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return t, err
	}
	return TruncateToDay(t), nil
}

// ParseRunDate parses a YYYY-MM-DD run date strictly.
func ParseRunDate(s string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, strings.TrimSpace(s))
	if err != nil {
		return t, fmt.Errorf("invalid run date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// TruncateToDay returns midnight UTC of the calendar day of t.
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int64 {
	return int64(TruncateToDay(b).Sub(TruncateToDay(a)).Hours() / 24)
}

// DateRange returns each calendar day from `from` to `to` inclusive in ascending order.
func DateRange(from, to time.Time) ([]time.Time, error) {
	from, to = TruncateToDay(from), TruncateToDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("end date %v is before start date %v", to.Format(constants.DateFormat), from.Format(constants.DateFormat))
	}
	retval := make([]time.Time, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		retval = append(retval, d)
	}
	return retval, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(constants.DateFormat)
}
