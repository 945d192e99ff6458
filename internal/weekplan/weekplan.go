// Package weekplan resolves the compact week encodings used by the timetable
// feed into concrete ISO weeks and calendar dates.
package weekplan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedWeekSpec indicates a week-range expression that cannot be parsed.
var ErrMalformedWeekSpec = errors.New("weekplan: malformed week spec")

// ErrInvalidWeekForYear indicates a week number that does not exist in the
// resolved target year (week 53 in a 52-week year).
var ErrInvalidWeekForYear = errors.New("weekplan: week does not exist in target year")

// ExpandWeeks expands a comma-separated week-range expression such as
// "3, 7-9, 12" into the sequence [3 7 8 9 12].
//
// Output order follows input order with ranges expanded ascending. Duplicates
// are preserved: repeated weeks mirror distinct recurring occurrences and must
// produce distinct lessons downstream.
func ExpandWeeks(spec string) ([]int, error) {
	weeks := make([]int, 0, 8)
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: empty token in %q", ErrMalformedWeekSpec, spec)
		}

		if lo, hi, ok := strings.Cut(token, "-"); ok {
			min, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("%w: bad range start %q", ErrMalformedWeekSpec, token)
			}
			max, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("%w: bad range end %q", ErrMalformedWeekSpec, token)
			}
			if min > max {
				return nil, fmt.Errorf("%w: descending range %q", ErrMalformedWeekSpec, token)
			}
			for week := min; week <= max; week++ {
				weeks = append(weeks, week)
			}
			continue
		}

		week, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%w: bad token %q", ErrMalformedWeekSpec, token)
		}
		weeks = append(weeks, week)
	}
	return weeks, nil
}

// ResolveDate produces the calendar date of the given weekday in ISO week
// `week`, anchored to the academic year containing `now`.
//
// School years run roughly August through June, so a week number below 27
// observed at any point of the year belongs to the following calendar year's
// spring term; weeks 27 and up belong to the current calendar year.
func ResolveDate(week int, day time.Weekday, now time.Time) (time.Time, error) {
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("%w: week %d out of range", ErrMalformedWeekSpec, week)
	}

	year := now.Year()
	if week < 27 {
		year++
	}

	if week > weeksInYear(year) {
		return time.Time{}, fmt.Errorf("%w: year %d has no week %d", ErrInvalidWeekForYear, year, week)
	}

	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -isoWeekdayIndex(jan4.Weekday()))
	return week1Monday.AddDate(0, 0, (week-1)*7+isoWeekdayIndex(day)), nil
}

// weeksInYear reports how many ISO weeks the given year contains (52 or 53).
// December 28th is always inside the last ISO week of its year.
func weeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// isoWeekdayIndex maps time.Weekday (Sunday=0) to the zero-based ISO day
// offset from Monday (Monday=0 .. Sunday=6).
func isoWeekdayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}
