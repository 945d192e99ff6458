package schoolsoft

import (
	"fmt"
	"time"
)

// School is one entry of the public school directory.
type School struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Org is an organization the authenticated user belongs to.
type Org struct {
	OrgID int    `json:"orgId"`
	Name  string `json:"name"`
}

// LoginResponse is the payload of POST /rest/app/login.
type LoginResponse struct {
	AppKey string `json:"appKey"`
	UserID int    `json:"userId"`
	Name   string `json:"name"`
	Orgs   []Org  `json:"orgs"`
}

// TokenResponse is the payload of GET /rest/app/token.
type TokenResponse struct {
	Token      string `json:"token"`
	ExpiryDate string `json:"expiryDate"`
}

// Expiry parses the expiryDate field. The server emits either a one-digit or
// a three-digit fraction depending on the value.
func (r TokenResponse) Expiry() (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.0",
	} {
		if expiry, err := time.Parse(layout, r.ExpiryDate); err == nil {
			return expiry, nil
		}
	}
	return time.Time{}, fmt.Errorf("schoolsoft: unparseable expiry date %q", r.ExpiryDate)
}

// LessonRecord is one raw occasion record from the student lessons feed.
// StartTime and EndTime arrive as "<date> <time>.<frac>" strings of which only
// the time-of-day portion is meaningful. DayID is zero-based with Monday = 0.
type LessonRecord struct {
	SubjectID   int    `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	GUID        string `json:"guid"`
	ID          int    `json:"id"`
	RoomName    string `json:"roomName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	DayID       int    `json:"dayId"`
	WeeksString string `json:"weeksString"`
}
