package persistence

import "time"

// Subject is a cached subject row. ID is the locally derived stable
// identifier, SubjectID the server-assigned integer.
type Subject struct {
	ID        string
	SubjectID int
	Name      string
}

// Occasion is a cached recurring weekly slot. Times of day are stored as
// seconds since midnight, the weekday as a Monday-based index (Monday = 0)
// so ordering follows the school week.
type Occasion struct {
	ID           string
	OccasionID   string
	SubjectID    string
	Location     string
	StartSeconds int
	EndSeconds   int
	Weekday      int
}

// Lesson is one cached dated occurrence. The date is stored as a day count
// since the Unix epoch.
type Lesson struct {
	ID           string
	OccasionID   string
	SubjectID    string
	Weekday      int
	Week         int
	EpochDay     int
	StartSeconds int
	EndSeconds   int
}

// LessonRow is a lesson joined with its subject name and occasion location,
// the shape the read queries return for rendering.
type LessonRow struct {
	Lesson
	SubjectName string
	Location    string
}

// Login is a saved credential row. The app key column holds sealed bytes;
// this layer never sees the key in the clear. The server-side user id and
// organization are stored with the credential so a later process can resume
// the session without a fresh login response.
type Login struct {
	ID        int64
	Username  string
	AppKey    []byte
	UserID    int
	UserType  int
	URL       string
	OrgID     int
	OrgName   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Instant is a point in time in cache coordinates: an epoch day plus seconds
// since midnight.
type Instant struct {
	EpochDay int
	Seconds  int
}

// InstantOf converts a wall-clock time to cache coordinates.
func InstantOf(t time.Time) Instant {
	return Instant{
		EpochDay: EpochDay(t),
		Seconds:  t.Hour()*3600 + t.Minute()*60 + t.Second(),
	}
}

// EpochDay converts a calendar date to its day count since 1970-01-01 in the
// date's own location.
func EpochDay(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DateOfEpochDay converts a day count back to a UTC midnight date.
func DateOfEpochDay(day int) time.Time {
	return time.Unix(int64(day)*86400, 0).UTC()
}
