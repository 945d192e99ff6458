package persistence

import "context"

// LessonFilter bounds a range query in cache coordinates. Nil bounds are
// open ends.
type LessonFilter struct {
	After  *Instant
	Before *Instant
}

// TimetableRepository is the cache store for the normalized timetable.
//
// The Upsert methods insert if no row with the same stable identifier exists
// and report whether an insert happened; this is what makes repeated syncs
// idempotent for identity-stable entities. ReplaceTimetable swaps the entire
// cached timetable in one transaction so readers never observe a partially
// replaced cache. A non-nil validate runs inside that transaction after the
// writes; an error from it rolls the replacement back.
type TimetableRepository interface {
	UpsertSubject(ctx context.Context, subject Subject) (bool, error)
	UpsertOccasion(ctx context.Context, occasion Occasion) (bool, error)
	ReplaceTimetable(ctx context.Context, subjects []Subject, occasions []Occasion, lessons []Lesson, validate func() error) error

	LessonsByWeek(ctx context.Context, week int, weekday *int) ([]LessonRow, error)
	LessonsInRange(ctx context.Context, filter LessonFilter) ([]LessonRow, error)
	Previous(ctx context.Context, at Instant) (LessonRow, bool, error)
	Current(ctx context.Context, at Instant) (LessonRow, bool, error)
	Next(ctx context.Context, at Instant) (LessonRow, bool, error)
}

// LoginRepository stores saved logins. At most one login is active at a time.
type LoginRepository interface {
	SaveLogin(ctx context.Context, login Login) (Login, error)
	ActiveLogin(ctx context.Context) (Login, error)
	SetActiveLogin(ctx context.Context, id int64) error
	DeleteLogin(ctx context.Context, id int64) error
}
