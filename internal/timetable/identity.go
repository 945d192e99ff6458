package timetable

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// namespace is the fixed UUID namespace for all derived identities. Identity
// derivation must stay deterministic: two syncs that observe the same natural
// key have to resolve to the same local identifier, or cache dedup breaks.
var namespace = uuid.MustParse("5c1f3c6e-9f74-4a1b-8a46-2f60c35d90bb")

// SubjectIdentity derives the stable local id for a server subject id.
func SubjectIdentity(subjectID int) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("subject/%d", subjectID)))
}

// LocationIdentity derives the stable local id for a location name. Locations
// carry no server identifier, so the name is the natural key.
func LocationIdentity(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("location/"+strings.TrimSpace(name)))
}

// OccasionIdentity derives the stable local id for a server occasion. The id
// is scoped by school URL because the server does not document occasion id
// uniqueness across organizations sharing an installation.
func OccasionIdentity(schoolURL, occasionID string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("occasion/"+strings.TrimRight(schoolURL, "/")+"/"+occasionID))
}

// LessonIdentity derives the stable local id for one (occasion, week) pair.
func LessonIdentity(occasionID uuid.UUID, week int) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("lesson/%s/%d", occasionID, week)))
}
