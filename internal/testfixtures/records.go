package testfixtures

import (
	"fmt"
	"sync/atomic"

	"github.com/example/schoolsoft-sync/internal/schoolsoft"
)

var recordCounter uint64

// RecordOption configures a generated lesson record.
type RecordOption func(*schoolsoft.LessonRecord)

// NewLessonRecord returns a deterministic raw lesson record with optional
// overrides. Each call yields a distinct occasion GUID and subject.
func NewLessonRecord(opts ...RecordOption) schoolsoft.LessonRecord {
	idx := atomic.AddUint64(&recordCounter, 1)
	record := schoolsoft.LessonRecord{
		SubjectID:   int(idx),
		SubjectName: fmt.Sprintf("Subject %d", idx),
		GUID:        fmt.Sprintf("guid-%03d", idx),
		ID:          int(1000 + idx),
		RoomName:    fmt.Sprintf("Room %d", idx),
		StartTime:   "1970-01-01 08:10:00.0",
		EndTime:     "1970-01-01 09:40:00.0",
		DayID:       0,
		WeeksString: "40",
	}
	for _, opt := range opts {
		opt(&record)
	}
	return record
}

// WithSubject overrides the record's subject id and name.
func WithSubject(id int, name string) RecordOption {
	return func(r *schoolsoft.LessonRecord) {
		r.SubjectID = id
		r.SubjectName = name
	}
}

// WithTimes overrides the raw start and end timestamps.
func WithTimes(start, end string) RecordOption {
	return func(r *schoolsoft.LessonRecord) {
		r.StartTime = start
		r.EndTime = end
	}
}

// WithWeeks overrides the record's week specification.
func WithWeeks(weeks string) RecordOption {
	return func(r *schoolsoft.LessonRecord) {
		r.WeeksString = weeks
	}
}

// WithDay overrides the record's zero-based day index.
func WithDay(dayID int) RecordOption {
	return func(r *schoolsoft.LessonRecord) {
		r.DayID = dayID
	}
}
