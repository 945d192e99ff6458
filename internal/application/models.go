package application

import (
	"time"

	"github.com/example/schoolsoft-sync/internal/normalize"
	"github.com/example/schoolsoft-sync/internal/persistence"
	"github.com/example/schoolsoft-sync/internal/timetable"
)

// LessonView is the read model handed to callers: a dated lesson with its
// subject and location resolved.
type LessonView struct {
	ID       string
	Subject  string
	Location string
	Week     int
	Weekday  time.Weekday
	Start    time.Time
	End      time.Time
}

// RefreshReport summarises one completed refresh.
type RefreshReport struct {
	Subjects  int
	Occasions int
	Lessons   int
	Skipped   []normalize.RecordError
}

func lessonView(row persistence.LessonRow) LessonView {
	date := persistence.DateOfEpochDay(row.EpochDay)
	return LessonView{
		ID:       row.ID,
		Subject:  row.SubjectName,
		Location: row.Location,
		Week:     row.Week,
		Weekday:  time.Weekday((row.Weekday + 1) % 7),
		Start:    date.Add(time.Duration(row.StartSeconds) * time.Second),
		End:      date.Add(time.Duration(row.EndSeconds) * time.Second),
	}
}

func lessonViews(rows []persistence.LessonRow) []LessonView {
	views := make([]LessonView, len(rows))
	for i, row := range rows {
		views[i] = lessonView(row)
	}
	return views
}

// storageWeekday maps time.Weekday to the Monday-based index used by the
// cache, so day ordering in queries follows the school week.
func storageWeekday(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// splitTimetable flattens normalized lessons into the three row sets the
// cache stores, deduplicating shared subjects and occasions by identity.
func splitTimetable(lessons []timetable.Lesson) ([]persistence.Subject, []persistence.Occasion, []persistence.Lesson) {
	subjects := make([]persistence.Subject, 0)
	occasions := make([]persistence.Occasion, 0)
	rows := make([]persistence.Lesson, 0, len(lessons))
	seenSubjects := make(map[string]bool)
	seenOccasions := make(map[string]bool)

	for _, lesson := range lessons {
		occ := lesson.Occasion
		subjectID := occ.Subject.ID.String()
		occasionID := occ.ID.String()

		if !seenSubjects[subjectID] {
			seenSubjects[subjectID] = true
			subjects = append(subjects, persistence.Subject{
				ID:        subjectID,
				SubjectID: occ.Subject.SubjectID,
				Name:      occ.Subject.Name,
			})
		}
		if !seenOccasions[occasionID] {
			seenOccasions[occasionID] = true
			occasions = append(occasions, persistence.Occasion{
				ID:           occasionID,
				OccasionID:   occ.OccasionID,
				SubjectID:    subjectID,
				Location:     occ.Location.Name,
				StartSeconds: occ.Start.Seconds(),
				EndSeconds:   occ.End.Seconds(),
				Weekday:      storageWeekday(occ.Day),
			})
		}
		rows = append(rows, persistence.Lesson{
			ID:           lesson.ID.String(),
			OccasionID:   occasionID,
			SubjectID:    subjectID,
			Weekday:      storageWeekday(occ.Day),
			Week:         lesson.Week,
			EpochDay:     persistence.EpochDay(lesson.Date),
			StartSeconds: occ.Start.Seconds(),
			EndSeconds:   occ.End.Seconds(),
		})
	}
	return subjects, occasions, rows
}
