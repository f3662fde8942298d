package service

import (
	"strings"
	"time"

	"github.com/noah-isme/halqat/internal/listquery"
)

// calendarDay returns the date of t in loc as a UTC midnight, the form dates are stored in.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDate accepts only the YYYY-MM-DD layout.
func parseDate(field, raw string) (time.Time, error) {
	parsed, err := time.Parse(listquery.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, invalid(field, "%s must be a date in YYYY-MM-DD format", humanize(field))
	}
	return parsed, nil
}

// weekStart returns the Monday on or before day.
func weekStart(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := day.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
