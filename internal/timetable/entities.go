package timetable

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// School identifies a SchoolSoft installation by its base endpoint URL.
type School struct {
	Name string
	URL  string
}

// Organization is the school unit a user belongs to for the duration of a
// login session.
type Organization struct {
	OrgID  int
	School School
	Name   string
}

// UserType mirrors the usertype ordinal the login endpoint expects.
type UserType int

const (
	UserTypeStudent UserType = iota + 1
	UserTypeGuardian
	UserTypeStaff
)

// User represents the principal of the active login session.
type User struct {
	ID           int
	Username     string
	School       School
	Organization Organization
	Type         UserType
}

// Subject is a taught subject. SubjectID is the server-assigned integer and is
// stable across syncs; ID is the locally derived identifier bound to it.
type Subject struct {
	ID        uuid.UUID
	SubjectID int
	Name      string
}

// Location is a room or place. The server exposes no identifier for it, so a
// location is value-equal by name and ID is derived from the name.
type Location struct {
	ID   uuid.UUID
	Name string
}

// Occasion is a recurring weekly time slot for a subject.
type Occasion struct {
	ID         uuid.UUID
	OccasionID string
	Subject    Subject
	Location   Location
	Start      DayTime
	End        DayTime
	Day        time.Weekday
}

// Lesson is one concrete dated occurrence of an occasion.
type Lesson struct {
	ID       uuid.UUID
	Occasion Occasion
	Week     int
	Date     time.Time
}

// Token is a short-lived session credential. It lives in memory only and is
// never written to the cache.
type Token struct {
	Value  string
	Expiry time.Time
}

// DayTime is a time of day expressed as seconds since midnight.
type DayTime int

// NewDayTime builds a DayTime from clock components.
func NewDayTime(hour, minute, second int) DayTime {
	return DayTime(hour*3600 + minute*60 + second)
}

// Hour returns the hour component.
func (d DayTime) Hour() int { return int(d) / 3600 }

// Minute returns the minute component.
func (d DayTime) Minute() int { return int(d) % 3600 / 60 }

// Second returns the second component.
func (d DayTime) Second() int { return int(d) % 60 }

// Seconds returns the raw seconds-since-midnight value.
func (d DayTime) Seconds() int { return int(d) }

// On places the time of day on the supplied calendar date.
func (d DayTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), d.Hour(), d.Minute(), d.Second(), 0, date.Location())
}

func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", d.Hour(), d.Minute(), d.Second())
}

// ParseDayTime parses a "HH:MM:SS" or "HH:MM" clock string.
func ParseDayTime(value string) (DayTime, error) {
	var hour, minute, second int
	if _, err := fmt.Sscanf(value, "%d:%d:%d", &hour, &minute, &second); err != nil {
		second = 0
		if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
			return 0, fmt.Errorf("timetable: invalid clock value %q", value)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("timetable: clock value %q out of range", value)
	}
	return NewDayTime(hour, minute, second), nil
}
