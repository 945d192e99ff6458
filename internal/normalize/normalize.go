// Package normalize converts raw lesson records from the wire feed into the
// relational domain model. Identity derivation is deterministic so repeated
// syncs dedup cleanly in the cache.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/timetable"
	"github.com/example/schoolsoft-sync/internal/weekplan"
)

// RecordError reports one raw record (or one week inside it) that could not
// be normalized. The batch continues past these.
type RecordError struct {
	Record schoolsoft.LessonRecord
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("normalize: record %q (subject %d): %v", e.Record.GUID, e.Record.SubjectID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Normalize converts raw occasion records into dated lessons. Subjects are
// memoized per pass keyed by their server id, first occurrence winning the
// name binding. A malformed record is reported and skipped, never aborting
// the batch; callers receive every lesson that could be produced alongside
// the failures.
func Normalize(schoolURL string, records []schoolsoft.LessonRecord, now time.Time) ([]timetable.Lesson, []RecordError) {
	subjects := make(map[int]timetable.Subject, len(records))
	lessons := make([]timetable.Lesson, 0, len(records))
	var failures []RecordError

	for _, record := range records {
		occasion, err := buildOccasion(schoolURL, record, subjects)
		if err != nil {
			failures = append(failures, RecordError{Record: record, Err: err})
			continue
		}

		weeks, err := weekplan.ExpandWeeks(record.WeeksString)
		if err != nil {
			failures = append(failures, RecordError{Record: record, Err: err})
			continue
		}

		for _, week := range weeks {
			date, err := weekplan.ResolveDate(week, occasion.Day, now)
			if err != nil {
				// One unresolvable week does not discard the record's
				// other weeks.
				failures = append(failures, RecordError{Record: record, Err: err})
				continue
			}
			lessons = append(lessons, timetable.Lesson{
				ID:       timetable.LessonIdentity(occasion.ID, week),
				Occasion: occasion,
				Week:     week,
				Date:     date,
			})
		}
	}

	return lessons, failures
}

func buildOccasion(schoolURL string, record schoolsoft.LessonRecord, subjects map[int]timetable.Subject) (timetable.Occasion, error) {
	subject, ok := subjects[record.SubjectID]
	if !ok {
		subject = timetable.Subject{
			ID:        timetable.SubjectIdentity(record.SubjectID),
			SubjectID: record.SubjectID,
			Name:      record.SubjectName,
		}
		subjects[record.SubjectID] = subject
	}

	start, err := parseTimeOfDay(record.StartTime)
	if err != nil {
		return timetable.Occasion{}, fmt.Errorf("start time: %w", err)
	}
	end, err := parseTimeOfDay(record.EndTime)
	if err != nil {
		return timetable.Occasion{}, fmt.Errorf("end time: %w", err)
	}
	if start >= end {
		return timetable.Occasion{}, fmt.Errorf("start %v is not before end %v", start, end)
	}

	day, err := weekdayFromDayID(record.DayID)
	if err != nil {
		return timetable.Occasion{}, err
	}

	return timetable.Occasion{
		ID:         timetable.OccasionIdentity(schoolURL, record.GUID),
		OccasionID: record.GUID,
		Subject:    subject,
		Location: timetable.Location{
			ID:   timetable.LocationIdentity(record.RoomName),
			Name: record.RoomName,
		},
		Start: start,
		End:   end,
		Day:   day,
	}, nil
}

// parseTimeOfDay extracts the clock component of a "<date> <time>.<frac>"
// value. Only the time of day is meaningful; the date part is server noise.
func parseTimeOfDay(value string) (timetable.DayTime, error) {
	_, clock, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok {
		return 0, fmt.Errorf("missing time component in %q", value)
	}
	if dot := strings.IndexByte(clock, '.'); dot >= 0 {
		clock = clock[:dot]
	}
	return timetable.ParseDayTime(clock)
}

// weekdayFromDayID converts the zero-based Monday-first server day index.
func weekdayFromDayID(dayID int) (time.Weekday, error) {
	if dayID < 0 || dayID > 6 {
		return 0, fmt.Errorf("day index %d out of range", dayID)
	}
	if dayID == 6 {
		return time.Sunday, nil
	}
	return time.Monday + time.Weekday(dayID), nil
}
